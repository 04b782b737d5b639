package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Ping checks daemon liveness and returns its process id.
func (c *Client) Ping() (*PingResponse, error) {
	var resp PingResponse
	if err := c.client.Call("Subcue.Ping", PingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status snapshot.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Subcue.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunStart asks the daemon to launch a new run.
func (c *Client) RunStart() (*RunStartResponse, error) {
	var resp RunStartResponse
	if err := c.client.Call("Subcue.RunStart", RunStartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunStop cancels the active run.
func (c *Client) RunStop() (*RunStopResponse, error) {
	var resp RunStopResponse
	if err := c.client.Call("Subcue.RunStop", RunStopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SkipFile cancels one file within the active run.
func (c *Client) SkipFile(path string) (*SkipFileResponse, error) {
	var resp SkipFileResponse
	if err := c.client.Call("Subcue.SkipFile", SkipFileRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunHistory lists recent runs.
func (c *Client) RunHistory(limit int) (*RunHistoryResponse, error) {
	var resp RunHistoryResponse
	if err := c.client.Call("Subcue.RunHistory", RunHistoryRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunShow fetches one run with its file results.
func (c *Client) RunShow(runID string) (*RunShowResponse, error) {
	var resp RunShowResponse
	if err := c.client.Call("Subcue.RunShow", RunShowRequest{RunID: runID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunLog fetches persisted run log lines.
func (c *Client) RunLog(req RunLogRequest) (*RunLogResponse, error) {
	var resp RunLogResponse
	if err := c.client.Call("Subcue.RunLog", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns live log events from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Subcue.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FailuresList retrieves engine failure records.
func (c *Client) FailuresList(onlySkipped bool) (*FailuresListResponse, error) {
	var resp FailuresListResponse
	if err := c.client.Call("Subcue.FailuresList", FailuresListRequest{OnlySkipped: onlySkipped}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FailuresReset clears failure streaks for a file or pair.
func (c *Client) FailuresReset(file, engine string) (*FailuresResetResponse, error) {
	var resp FailuresResetResponse
	if err := c.client.Call("Subcue.FailuresReset", FailuresResetRequest{File: file, Engine: engine}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StoreHealth retrieves detailed database diagnostics.
func (c *Client) StoreHealth() (*StoreHealthResponse, error) {
	var resp StoreHealthResponse
	if err := c.client.Call("Subcue.StoreHealth", StoreHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sweep applies the retention policy once.
func (c *Client) Sweep() (*SweepResponse, error) {
	var resp SweepResponse
	if err := c.client.Call("Subcue.Sweep", SweepRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Vacuum compacts the database file.
func (c *Client) Vacuum() (*VacuumResponse, error) {
	var resp VacuumResponse
	if err := c.client.Call("Subcue.Vacuum", VacuumRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Subcue.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	var resp ShutdownResponse
	if err := c.client.Call("Subcue.Shutdown", ShutdownRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
