package storage

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/hirelens/hirelens/internal/utils"
)

// Resolver maps a stored resume location to a readable local path.
type Resolver interface {
	Resolve(resumeURL string) (string, error)
}

// LocalResolver serves resumes from a local uploads directory. Application
// rows store full URLs (the upload module serves them over HTTP); only the
// path under /uploads/ is meaningful here.
type LocalResolver struct {
	baseDir string
}

func NewLocalResolver(baseDir string) *LocalResolver {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	return &LocalResolver{baseDir: baseDir}
}

const uploadsMarker = "/uploads/"

func (r *LocalResolver) Resolve(resumeURL string) (string, error) {
	const op = "LocalResolver.Resolve"

	if strings.TrimSpace(resumeURL) == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "resume location is empty", nil)
	}

	raw := resumeURL
	if u, err := url.Parse(resumeURL); err == nil && u.Path != "" {
		raw = u.Path
	}

	idx := strings.Index(raw, uploadsMarker)
	if idx == -1 {
		return "", utils.E(utils.CodeInvalidArgument, op,
			fmt.Sprintf("resume location %q is not under an uploads directory", resumeURL), nil)
	}

	sub := raw[idx+len(uploadsMarker):]
	// path.Clean collapses any ../ escape attempts before joining.
	sub = path.Clean("/" + sub)
	if sub == "/" {
		return "", utils.E(utils.CodeInvalidArgument, op, "resume location has no file component", nil)
	}

	return filepath.Join(r.baseDir, filepath.FromSlash(sub)), nil
}
