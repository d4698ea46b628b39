package ipc

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func startServer(t *testing.T) (*Server, *Client) {
	t.Helper()
	sock := filepath.Join(t.TempDir(), SocketName)

	srv := NewServer(sock)
	srv.SetConnTimeout(5 * time.Second)
	t.Cleanup(func() { _ = srv.Stop() })

	client := NewClient(sock)
	client.SetTimeout(5 * time.Second)
	return srv, client
}

func TestRoundTrip(t *testing.T) {
	srv, client := startServer(t)

	srv.Handle("ping", func(req *Request) *Response {
		return SuccessResponse(map[string]string{"status": "ok"})
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := client.SendCommand("ping", nil)
	if err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got error: %+v", resp.Error)
	}

	var data map[string]string
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["status"] != "ok" {
		t.Errorf("status: got %q", data["status"])
	}
}

func TestParamsDelivered(t *testing.T) {
	srv, client := startServer(t)

	type echoParams struct {
		Message string `json:"message"`
	}
	srv.Handle("echo", func(req *Request) *Response {
		var p echoParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return ErrorResponse(ErrCodeValidation, err.Error())
		}
		return SuccessResponse(p)
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := client.SendCommand("echo", echoParams{Message: "hello"})
	if err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	var p echoParams
	if err := json.Unmarshal(resp.Data, &p); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if p.Message != "hello" {
		t.Errorf("message: got %q", p.Message)
	}
}

func TestUnknownCommand(t *testing.T) {
	srv, client := startServer(t)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := client.SendCommand("nope", nil)
	if err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if resp.Success {
		t.Fatal("expected failure for unknown command")
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeUnknownCommand {
		t.Errorf("error code: got %+v", resp.Error)
	}
}

func TestProtocolMismatchRejected(t *testing.T) {
	srv, client := startServer(t)
	srv.Handle("ping", func(req *Request) *Response { return SuccessResponse(nil) })
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := client.Send(&Request{ProtocolVersion: 99, Command: "ping"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp.Success || resp.Error == nil || resp.Error.Code != ErrCodeProtocolMismatch {
		t.Errorf("expected protocol mismatch, got %+v", resp)
	}
}

func TestClientErrorWhenDaemonDown(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), SocketName))
	client.SetTimeout(time.Second)

	if _, err := client.SendCommand("ping", nil); err == nil {
		t.Error("expected connection error when no daemon is listening")
	}
}
