package sftptest

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/hossein1376/fm/internal/jailfs"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type Options struct {
	Root     string
	Username string
	Password string
	// HostSigner defaults to a fresh ed25519 key.
	HostSigner ssh.Signer
	Logger     *slog.Logger
}

type Server struct {
	conf   *ssh.ServerConfig
	signer ssh.Signer
	fs     *jailfs.FS
	logger *slog.Logger
}

func New(opt Options) (*Server, error) {
	if opt.Root == "" {
		return nil, errors.New("root is required")
	}
	if opt.Username == "" || opt.Password == "" {
		return nil, errors.New("username and password are required")
	}
	signer := opt.HostSigner
	if signer == nil {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		signer, err = ssh.NewSignerFromKey(priv)
		if err != nil {
			return nil, err
		}
	}
	lg := opt.Logger
	if lg == nil {
		lg = slog.Default()
	}

	conf := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			userOK := subtle.ConstantTimeCompare([]byte(c.User()), []byte(opt.Username)) == 1
			passOK := subtle.ConstantTimeCompare(pass, []byte(opt.Password)) == 1
			if !userOK || !passOK {
				return nil, errors.New("invalid credentials")
			}
			return &ssh.Permissions{}, nil
		},
	}
	conf.AddHostKey(signer)
	return &Server{conf: conf, signer: signer, fs: jailfs.New(opt.Root), logger: lg}, nil
}

// PublicKey is the host key clients should expect.
func (s *Server) PublicKey() ssh.PublicKey { return s.signer.PublicKey() }

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		c, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}
		go s.handleConn(c)
	}
}

func (s *Server) handleConn(netConn net.Conn) {
	defer netConn.Close()
	_ = netConn.SetDeadline(time.Now().Add(30 * time.Second))
	serverConn, chans, reqs, err := ssh.NewServerConn(netConn, s.conf)
	if err != nil {
		s.logger.Debug("sftp handshake failed", "remote", netConn.RemoteAddr().String(), "err", err)
		return
	}
	defer serverConn.Close()
	_ = netConn.SetDeadline(time.Time{})

	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "unsupported channel")
			continue
		}
		ch, reqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go func() {
			defer ch.Close()
			for req := range reqs {
				if req.Type == "subsystem" && len(req.Payload) >= 4 && string(req.Payload[4:]) == "sftp" {
					_ = req.Reply(true, nil)
					rs := sftp.NewRequestServer(ch, Handlers{FS: s.fs}.sftpHandlers())
					_ = rs.Serve()
					return
				}
				_ = req.Reply(false, nil)
			}
		}()
	}
}
