package domain

import "context"

//go:generate go tool mockgen -destination=./mocks/transport_mock.go -package=mocks . Transport

// Transport はメッセージ単位で読み書きする物理的な接続です。
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code int32, reason string) error
}

// Connection はセッションに紐付いた接続で、読み書きのたびにセッションの活動時刻を更新します。
type Connection struct {
	session   *Session
	transport Transport
}

func NewConnection(session *Session, transport Transport) *Connection {
	return &Connection{session: session, transport: transport}
}

func (c *Connection) Session() *Session { return c.session }

func (c *Connection) Read(ctx context.Context) ([]byte, error) {
	data, err := c.transport.Read(ctx)
	if err != nil {
		return nil, err
	}
	c.session.TouchRead()
	return data, nil
}

func (c *Connection) Write(ctx context.Context, data []byte) error {
	if err := c.transport.Write(ctx, data); err != nil {
		return err
	}
	c.session.TouchWrite()
	return nil
}

// Close はセッションを閉じ、初回だけ接続を閉じる
func (c *Connection) Close(code int32, reason string) error {
	if !c.session.Close() {
		return nil
	}
	return c.transport.Close(code, reason)
}
