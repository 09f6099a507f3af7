package filesync

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SSHConfig holds connection parameters for the SFTP transport.
type SSHConfig struct {
	Host     string
	Port     int // 0 means 22
	User     string
	Password string
}

// SFTPTransport implements Transport over an SSH connection.
type SFTPTransport struct {
	conn *ssh.Client
	sftp *sftp.Client
}

// DialSFTP opens the SSH connection and an SFTP session on top of it.
func DialSFTP(cfg SSHConfig) (*SFTPTransport, error) {
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	clientConf := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	conn, err := ssh.Dial("tcp", addr, clientConf)
	if err != nil {
		return nil, fmt.Errorf("filesync: ssh dial %s: %w", addr, err)
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("filesync: sftp session: %w", err)
	}
	return &SFTPTransport{conn: conn, sftp: client}, nil
}

func (t *SFTPTransport) Close() error {
	t.sftp.Close()
	return t.conn.Close()
}

// Upload copies a local file to remotePath, creating parent directories
// as needed. The SFTP protocol has no cancellation hook, so the context
// is only checked up-front.
func (t *SFTPTransport) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("filesync: open local %s: %w", localPath, err)
	}
	defer src.Close()

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := t.sftp.MkdirAll(dir); err != nil {
			return fmt.Errorf("filesync: mkdir remote %s: %w", dir, err)
		}
	}

	dst, err := t.sftp.Create(remotePath)
	if err != nil {
		return fmt.Errorf("filesync: create remote %s: %w", remotePath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("filesync: upload %s: %w", remotePath, err)
	}
	return dst.Close()
}

// Download copies a remote file to localPath.
func (t *SFTPTransport) Download(ctx context.Context, remotePath, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := t.sftp.Open(remotePath)
	if err != nil {
		return fmt.Errorf("filesync: open remote %s: %w", remotePath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("filesync: create local %s: %w", localPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("filesync: download %s: %w", remotePath, err)
	}
	return dst.Close()
}
