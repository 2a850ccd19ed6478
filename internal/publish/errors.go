package publish

import (
	"strings"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
)

// classifyGitError translates go-git failures into publish errors.
func classifyGitError(err error, op, url string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	l := strings.ToLower(err.Error())
	builder := errors.WrapError(err, errors.CategoryPublish, "git "+op+" failed").
		WithContext("op", op)
	if url != "" {
		builder.WithContext("url", url)
	}

	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "authorization") || strings.Contains(l, "invalid credentials"):
		builder.WithContext("auth", true)
	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		builder.RateLimit()
	case strings.Contains(l, "remote hung up") || strings.Contains(l, "connection reset") || strings.Contains(l, "timeout") || strings.Contains(l, "no route to host"):
		builder.Retryable()
	case strings.Contains(l, "non-fast-forward") || strings.Contains(l, "diverged"):
		builder.WithContext("diverged", true)
	}
	return builder.Build()
}
