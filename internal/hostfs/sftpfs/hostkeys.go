package sftpfs

import (
	"github.com/skeema/knownhosts"
	"golang.org/x/crypto/ssh"
)

// HostKeyPolicy decides which server host keys a connection accepts.
type HostKeyPolicy struct {
	callback ssh.HostKeyCallback
	algos    func(addr string) []string
	insecure bool
}

// InsecureHostKeys accepts any server key.
func InsecureHostKeys() *HostKeyPolicy {
	return &HostKeyPolicy{callback: ssh.InsecureIgnoreHostKey(), insecure: true}
}

// FixedHostKey accepts exactly one key.
func FixedHostKey(key ssh.PublicKey) *HostKeyPolicy {
	return &HostKeyPolicy{callback: ssh.FixedHostKey(key)}
}

// KnownHosts verifies servers against an OpenSSH known_hosts file.
func KnownHosts(path string) (*HostKeyPolicy, error) {
	kh, err := knownhosts.New(path)
	if err != nil {
		return nil, err
	}
	return &HostKeyPolicy{callback: kh.HostKeyCallback(), algos: kh.HostKeyAlgorithms}, nil
}

// Insecure reports whether the policy skips verification.
func (p *HostKeyPolicy) Insecure() bool { return p == nil || p.insecure }

func (p *HostKeyPolicy) apply(cfg *ssh.ClientConfig, addr string) {
	if p == nil {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey()
		return
	}
	cfg.HostKeyCallback = p.callback
	if p.algos != nil {
		cfg.HostKeyAlgorithms = p.algos(addr)
	}
}
