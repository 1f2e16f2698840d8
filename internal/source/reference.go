package source

import (
	"path"
	"strings"

	"github.com/cockroachdb/errors"
	giturls "github.com/whilp/git-urls"
)

var ErrInvalidReference = errors.New("invalid repository reference")

// ValidateReference accepts anything git can clone from: http(s), ssh, scp-like
// and file URLs.
func ValidateReference(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return errors.WithHint(ErrInvalidReference, "repository URL is required")
	}
	if strings.ContainsAny(ref, " \t\r\n") {
		return errors.Wrapf(ErrInvalidReference, "%q: contains whitespace", ref)
	}
	u, err := giturls.Parse(ref)
	if err != nil {
		return errors.Wrapf(ErrInvalidReference, "%s: %v", ref, err)
	}
	if u.Host == "" && u.Scheme != "file" {
		return errors.Wrapf(ErrInvalidReference, "%s: missing host", ref)
	}
	return nil
}

// ProjectName is the last path segment of the reference without ".git".
// https://github.com/org/sample.git -> sample
func ProjectName(ref string) string {
	ref = strings.TrimSpace(ref)
	p := ref
	if u, err := giturls.Parse(ref); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	name := strings.TrimSuffix(path.Base(p), ".git")
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func isSSH(ref string) bool {
	u, err := giturls.Parse(ref)
	if err != nil {
		return false
	}
	return u.Scheme == "ssh"
}
