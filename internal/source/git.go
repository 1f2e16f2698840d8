package source

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type GitOptions struct {
	// Depth of the clone; 0 fetches full history.
	Depth int
	// SSH credentials, used for ssh:// and scp-like references only.
	SSHKeyPath     string
	SSHPassword    string
	KnownHostsPath string
}

// GitFetcher clones a repository into a workspace with go-git.
type GitFetcher struct {
	opts GitOptions
}

func NewGitFetcher(opts GitOptions) *GitFetcher {
	return &GitFetcher{opts: opts}
}

// Fetch clones reference into dir, which must be empty. Every failure here is
// a transport failure from the caller's point of view.
func (f *GitFetcher) Fetch(ctx context.Context, reference, dir string) error {
	auth, err := f.auth(reference)
	if err != nil {
		return err
	}

	_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          reference,
		Auth:         auth,
		Depth:        f.opts.Depth,
		SingleBranch: true,
		Tags:         git.NoTags,
	})
	if err != nil {
		return errors.Wrapf(err, "clone %s", reference)
	}
	return nil
}

func (f *GitFetcher) auth(reference string) (transport.AuthMethod, error) {
	if !isSSH(reference) || f.opts.SSHKeyPath == "" {
		return nil, nil
	}
	if _, err := os.Stat(f.opts.SSHKeyPath); os.IsNotExist(err) {
		return nil, nil
	}

	keys, err := ssh.NewPublicKeysFromFile("git", f.opts.SSHKeyPath, f.opts.SSHPassword)
	if err != nil {
		return nil, errors.Wrap(err, "load ssh key")
	}
	if f.opts.KnownHostsPath != "" {
		cb, err := knownhosts.New(f.opts.KnownHostsPath)
		if err != nil {
			return nil, errors.Wrap(err, "load known_hosts")
		}
		keys.HostKeyCallback = cb
	}
	return keys, nil
}
