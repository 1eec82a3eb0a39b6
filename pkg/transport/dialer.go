package transport

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/packets"
	"github.com/eclipse/paho.golang/paho"
)

const (
	defaultKeepAlive         = 20
	defaultConnectRetryDelay = 3 * time.Second
)

// Dialer holds the options for establishing and maintaining an MQTT
// connection.
type Dialer struct {
	// KeepAlive period in seconds (defaults to 20).
	KeepAlive int

	// SessionExpiryInterval in seconds (if 0 the session ends when the
	// network connection is closed).
	SessionExpiryInterval int

	// ConnectRetryDelay is how long to wait between connection attempts
	// (defaults to 3s).
	ConnectRetryDelay time.Duration

	// ConnectTimeout is how long to wait for the connection process to
	// complete (defaults to autopaho's 10s).
	ConnectTimeout time.Duration

	// ID is the client identifier (defaults to a random string).
	ID string

	// Username and Password are the MQTT credentials. Empty Username
	// connects anonymously.
	Username string
	Password string

	// TLS is the TLS configuration for tls/mqtts addresses.
	TLS *tls.Config

	// Handler receives every inbound publish. Required.
	Handler MessageHandler

	// OnConnectError is called when a connection attempt fails, including
	// reconnect attempts. Useful for logging.
	OnConnectError func(error)

	// OnConnectionUp is called when a connection is established, including
	// reconnections.
	OnConnectionUp func()
}

func (dl *Dialer) keepAlive() uint16 {
	if dl.KeepAlive == 0 {
		return defaultKeepAlive
	}
	return uint16(dl.KeepAlive)
}

func (dl *Dialer) connectRetryDelay() time.Duration {
	if dl.ConnectRetryDelay == 0 {
		return defaultConnectRetryDelay
	}
	return dl.ConnectRetryDelay
}

func (dl *Dialer) clientID() (string, error) {
	if dl.ID != "" {
		return dl.ID, nil
	}
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

func (dl *Dialer) connectPacket(pc *paho.Connect, _ *url.URL) (*paho.Connect, error) {
	if dl.Username == "" {
		pc.UsernameFlag = false
		pc.PasswordFlag = false
		pc.Username = ""
		pc.Password = nil
		return pc, nil
	}
	pc.UsernameFlag = true
	pc.Username = dl.Username
	if dl.Password != "" {
		pc.PasswordFlag = true
		pc.Password = []byte(dl.Password)
	} else {
		pc.PasswordFlag = false
		pc.Password = nil
	}
	return pc, nil
}

// Dial connects to the MQTT server at the given address and blocks until
// the first connection is up or ctx is done. The returned Conn keeps
// itself connected until closed.
func (dl *Dialer) Dial(ctx context.Context, addr string) (*Conn, error) {
	if dl.Handler == nil {
		return nil, fmt.Errorf("transport: Dialer.Handler is required")
	}
	id, err := dl.clientID()
	if err != nil {
		return nil, err
	}
	addru, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}

	conn := &Conn{handler: dl.Handler}
	cfg := autopaho.ClientConfig{
		ServerUrls:        []*url.URL{addru},
		AttemptConnection: dl.attemptConnection,
		OnConnectError: func(err error) {
			if dl.OnConnectError != nil {
				dl.OnConnectError(err)
			}
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			if dl.OnConnectionUp != nil {
				dl.OnConnectionUp()
			}
			conn.resubscribe()
		},
		CleanStartOnInitialConnection: true,
		KeepAlive:                     dl.keepAlive(),
		SessionExpiryInterval:         uint32(dl.SessionExpiryInterval),
		ConnectRetryDelay:             dl.connectRetryDelay(),
		ConnectTimeout:                dl.ConnectTimeout,
		ConnectPacketBuilder:          dl.connectPacket,
		TlsCfg:                        dl.TLS,
		ClientConfig: paho.ClientConfig{
			ClientID: id,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					conn.handler(context.Background(), pr.Packet.Topic, pr.Packet.Payload)
					return true, nil
				},
			},
		},
	}
	cm, err := autopaho.NewConnection(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		return nil, err
	}
	conn.cm = cm
	conn.up.Store(true)
	return conn, nil
}

func (dl *Dialer) attemptConnection(ctx context.Context, cc autopaho.ClientConfig, u *url.URL) (net.Conn, error) {
	switch strings.ToLower(u.Scheme) {
	case "mqtt", "tcp", "":
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, err
		}
		if err := conn.(*net.TCPConn).SetNoDelay(true); err != nil {
			return nil, err
		}
		return packets.NewThreadSafeConn(conn), nil
	case "ssl", "tls", "mqtts", "tcps":
		d := tls.Dialer{
			Config: cc.TlsCfg,
		}
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, err
		}
		if err := conn.(*tls.Conn).NetConn().(*net.TCPConn).SetNoDelay(true); err != nil {
			return nil, err
		}
		return packets.NewThreadSafeConn(conn), nil
	default:
		return nil, fmt.Errorf("transport: unsupported scheme %q in %s", u.Scheme, u)
	}
}
