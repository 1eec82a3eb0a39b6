package transport

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

func TestDialerDefaults(t *testing.T) {
	dl := &Dialer{}
	if got := dl.keepAlive(); got != 20 {
		t.Errorf("keepAlive() = %d, want 20", got)
	}
	if got := dl.connectRetryDelay(); got != 3*time.Second {
		t.Errorf("connectRetryDelay() = %v, want 3s", got)
	}

	dl = &Dialer{KeepAlive: 60, ConnectRetryDelay: time.Second}
	if got := dl.keepAlive(); got != 60 {
		t.Errorf("keepAlive() = %d, want 60", got)
	}
	if got := dl.connectRetryDelay(); got != time.Second {
		t.Errorf("connectRetryDelay() = %v, want 1s", got)
	}
}

func TestDialerClientID(t *testing.T) {
	dl := &Dialer{ID: "chimebox-1"}
	id, err := dl.clientID()
	if err != nil {
		t.Fatalf("clientID: %v", err)
	}
	if id != "chimebox-1" {
		t.Fatalf("clientID = %q", id)
	}

	dl = &Dialer{}
	a, err := dl.clientID()
	if err != nil {
		t.Fatalf("clientID: %v", err)
	}
	b, err := dl.clientID()
	if err != nil {
		t.Fatalf("clientID: %v", err)
	}
	if a == "" || a == b {
		t.Fatalf("random client IDs should differ: %q, %q", a, b)
	}
}

func TestConnectPacketCredentials(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		pass     string
		wantUser bool
		wantPass bool
	}{
		{name: "anonymous"},
		{name: "user only", user: "dev", wantUser: true},
		{name: "user and password", user: "dev", pass: "secret", wantUser: true, wantPass: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dl := &Dialer{Username: tt.user, Password: tt.pass}
			pc, err := dl.connectPacket(&paho.Connect{}, nil)
			if err != nil {
				t.Fatalf("connectPacket: %v", err)
			}
			if pc.UsernameFlag != tt.wantUser {
				t.Errorf("UsernameFlag = %v, want %v", pc.UsernameFlag, tt.wantUser)
			}
			if pc.PasswordFlag != tt.wantPass {
				t.Errorf("PasswordFlag = %v, want %v", pc.PasswordFlag, tt.wantPass)
			}
			if pc.Username != tt.user {
				t.Errorf("Username = %q, want %q", pc.Username, tt.user)
			}
		})
	}
}

func TestAttemptConnectionRejectsScheme(t *testing.T) {
	dl := &Dialer{}
	u, _ := url.Parse("ws://broker:1883")
	if _, err := dl.attemptConnection(context.Background(), autopaho.ClientConfig{}, u); err == nil {
		t.Fatal("ws scheme should be rejected")
	}
}

func TestDialRequiresHandler(t *testing.T) {
	dl := &Dialer{}
	if _, err := dl.Dial(context.Background(), "mqtt://localhost:1883"); err == nil {
		t.Fatal("Dial without Handler should fail")
	}
}
