package config

import (
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jingkaihe/pricewatch/pkg/fetch"
)

// ValidationError lists every problem found in a Settings value.
type ValidationError struct {
	errs *multierror.Error
}

func (e *ValidationError) Error() string { return e.errs.Error() }

func (e *ValidationError) Unwrap() error { return e.errs }

// Problems returns the individual validation failures.
func (e *ValidationError) Problems() []error { return e.errs.Errors }

// IsValidationError reports whether err came from Settings.Validate.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func formatErrors(es []error) string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Validate checks every field and reports all problems at once.
func (s *Settings) Validate() error {
	var result *multierror.Error

	switch s.Store.Backend {
	case "json":
		if s.Store.Path == "" {
			result = multierror.Append(result, errors.New("store.path must not be empty"))
		}
	case "sqlite":
		if s.Store.SQLitePath == "" {
			result = multierror.Append(result, errors.New("store.sqlite_path must not be empty"))
		}
	default:
		result = multierror.Append(result, errors.Errorf("store.backend must be json or sqlite, got %q", s.Store.Backend))
	}
	if s.Store.LockTimeout <= 0 {
		result = multierror.Append(result, errors.Errorf("store.lock_timeout must be positive, got %s", s.Store.LockTimeout))
	}

	if s.Fetch.Timeout <= 0 {
		result = multierror.Append(result, errors.Errorf("fetch.timeout must be positive, got %s", s.Fetch.Timeout))
	}
	if s.Fetch.MaxBytes <= 0 {
		result = multierror.Append(result, errors.Errorf("fetch.max_bytes must be positive, got %d", s.Fetch.MaxBytes))
	}
	if s.Fetch.RetryAttempts < 1 {
		result = multierror.Append(result, errors.Errorf("fetch.retry_attempts must be at least 1, got %d", s.Fetch.RetryAttempts))
	}
	if s.Fetch.RetryDelay < 0 {
		result = multierror.Append(result, errors.Errorf("fetch.retry_delay must not be negative, got %s", s.Fetch.RetryDelay))
	}

	if err := fetch.ValidateURL(s.Discovery.Endpoint); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "discovery.endpoint"))
	}

	if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
		result = multierror.Append(result, errors.Errorf("log_level %q is not a valid level", s.LogLevel))
	}
	switch s.LogFormat {
	case "fmt", "text", "json":
	default:
		result = multierror.Append(result, errors.Errorf("log_format must be fmt or json, got %q", s.LogFormat))
	}

	switch s.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		result = multierror.Append(result, errors.Errorf("tracing.sampler must be always, never or ratio, got %q", s.Tracing.Sampler))
	}
	if s.Tracing.Ratio < 0 || s.Tracing.Ratio > 1 {
		result = multierror.Append(result, errors.Errorf("tracing.ratio must be between 0 and 1, got %g", s.Tracing.Ratio))
	}

	if result == nil {
		return nil
	}
	result.ErrorFormat = formatErrors
	return &ValidationError{errs: result}
}
