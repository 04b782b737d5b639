package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	"subcue/internal/api"
	"subcue/internal/daemon"
	"subcue/internal/logging"
	"subcue/internal/workflow"
)

// shutdownDelay gives the Shutdown RPC reply time to flush before the
// daemon tears the listener down.
const shutdownDelay = 100 * time.Millisecond

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Subcue", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) RunStart(_ RunStartRequest, resp *RunStartResponse) error {
	s.logger.Debug("run start requested")
	run, err := s.daemon.StartRun(s.ctx)
	if err != nil {
		return err
	}
	resp.Run = api.FromRun(run)
	s.logger.Info("run started via IPC", logging.String(logging.FieldRunID, run.ID))
	return nil
}

func (s *service) RunStop(_ RunStopRequest, resp *RunStopResponse) error {
	s.logger.Debug("run stop requested")
	err := s.daemon.StopRun()
	if errors.Is(err, workflow.ErrNoRunInProgress) {
		resp.Stopped = false
		return nil
	}
	if err != nil {
		return err
	}
	resp.Stopped = true
	s.logger.Info("run stop accepted via IPC")
	return nil
}

func (s *service) SkipFile(req SkipFileRequest, resp *SkipFileResponse) error {
	if strings.TrimSpace(req.Path) == "" {
		return errors.New("file path is required")
	}
	if err := s.daemon.SkipFile(req.Path); err != nil {
		return err
	}
	resp.Skipped = true
	s.logger.Info("file skip accepted via IPC", logging.String(logging.FieldFile, req.Path))
	return nil
}

func (s *service) RunHistory(req RunHistoryRequest, resp *RunHistoryResponse) error {
	runs, err := s.daemon.RunHistory(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Runs = api.FromRuns(runs)
	return nil
}

func (s *service) RunShow(req RunShowRequest, resp *RunShowResponse) error {
	if strings.TrimSpace(req.RunID) == "" {
		return errors.New("run id is required")
	}
	run, files, err := s.daemon.RunDetail(s.ctx, req.RunID)
	if err != nil {
		return err
	}
	resp.Run = api.FromRun(run)
	resp.Files = api.FromFileResults(files)
	return nil
}

func (s *service) RunLog(req RunLogRequest, resp *RunLogResponse) error {
	if strings.TrimSpace(req.RunID) == "" {
		return errors.New("run id is required")
	}
	lines, err := s.daemon.RunLog(s.ctx, req.RunID, req.TailLines)
	if err != nil {
		return err
	}
	resp.Lines = lines
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	hub := s.daemon.LogStream()
	if hub == nil {
		resp.Next = req.Since
		return nil
	}
	if req.TailLines > 0 && req.Since == 0 && !req.Follow {
		resp.Events, resp.Next = hub.Tail(req.TailLines)
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait)
		defer cancel()
	}
	events, next, err := hub.Fetch(ctx, req.Since, req.Limit, req.Follow)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Events = events
	resp.Next = next
	return nil
}

func (s *service) FailuresList(req FailuresListRequest, resp *FailuresListResponse) error {
	records, err := s.daemon.Failures(s.ctx, req.OnlySkipped)
	if err != nil {
		return err
	}
	resp.Failures = api.FromFailures(records)
	return nil
}

func (s *service) FailuresReset(req FailuresResetRequest, resp *FailuresResetResponse) error {
	cleared, err := s.daemon.ResetFailures(s.ctx, req.File, req.Engine)
	if err != nil {
		return err
	}
	resp.Cleared = cleared
	return nil
}

func (s *service) StoreHealth(_ StoreHealthRequest, resp *StoreHealthResponse) error {
	health, err := s.daemon.StoreHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.Health = api.FromHealth(health)
	return nil
}

func (s *service) Sweep(_ SweepRequest, resp *SweepResponse) error {
	s.logger.Debug("manual sweep requested")
	result, err := s.daemon.Sweep(s.ctx)
	if err != nil {
		return err
	}
	resp.Outcome = api.FromSweepResult(result)
	return nil
}

func (s *service) Vacuum(_ VacuumRequest, resp *VacuumResponse) error {
	s.logger.Debug("vacuum requested")
	before, after, err := s.daemon.Vacuum(s.ctx)
	if err != nil {
		return err
	}
	resp.SizeBefore = before
	resp.SizeAfter = after
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.logger.Info("shutdown requested via IPC")
	resp.Stopping = true
	go func() {
		time.Sleep(shutdownDelay)
		s.daemon.RequestShutdown()
	}()
	return nil
}
