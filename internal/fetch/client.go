package fetch

import (
	"context"
	"fmt"
	"io"

	"github.com/jlaffaye/ftp"
)

// Client is the slice of FTP behavior the fetcher needs. Tests substitute a
// fake; production wraps jlaffaye/ftp.
type Client interface {
	// List returns the entry names in a directory, non-recursive.
	List(path string) ([]string, error)

	// Retrieve streams the remote file at path into w.
	Retrieve(path string, w io.Writer) error

	// Quit closes the connection.
	Quit() error
}

// Dialer opens a Client session. The fetcher redials through it when the
// connection drops mid-run.
type Dialer func(ctx context.Context) (Client, error)

// NewFTPDialer returns a Dialer for an anonymous session against addr
// (host:port).
func NewFTPDialer(addr string, opts ...ftp.DialOption) Dialer {
	return func(ctx context.Context) (Client, error) {
		conn, err := ftp.Dial(addr, append(opts, ftp.DialWithContext(ctx))...)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		if err := conn.Login("anonymous", "anonymous"); err != nil {
			conn.Quit()
			return nil, fmt.Errorf("anonymous login: %w", err)
		}
		return &ftpClient{conn: conn}, nil
	}
}

type ftpClient struct {
	conn *ftp.ServerConn
}

func (c *ftpClient) List(path string) ([]string, error) {
	names, err := c.conn.NameList(path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	return names, nil
}

func (c *ftpClient) Retrieve(path string, w io.Writer) error {
	resp, err := c.conn.Retr(path)
	if err != nil {
		return fmt.Errorf("retr %s: %w", path, err)
	}
	defer resp.Close()

	if _, err := io.Copy(w, resp); err != nil {
		return fmt.Errorf("download %s: %w", path, err)
	}
	return nil
}

func (c *ftpClient) Quit() error {
	return c.conn.Quit()
}
