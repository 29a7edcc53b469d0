package source

import (
	"context"
	"errors"
	"net/url"

	"RiskLab/internal/domain/models"
	xhttp "RiskLab/pkg/http"
)

// ClassifyError wraps err as a FetchError. Throttling, 5xx, timeouts and transport
// failures are transient; other statuses, decode failures and cancellation are permanent.
func ClassifyError(p models.Provider, seriesID string, err error) error {
	if err == nil {
		return nil
	}
	var fe *models.FetchError
	if errors.As(err, &fe) {
		return err
	}

	out := &models.FetchError{Kind: models.FetchPermanent, Provider: p, SeriesID: seriesID, Err: err}
	var se *xhttp.StatusError
	var ue *url.Error
	switch {
	case errors.As(err, &se):
		out.StatusCode = se.StatusCode
		if se.Retryable() {
			out.Kind = models.FetchTransient
		}
	case errors.Is(err, context.Canceled):
	case xhttp.IsTimeout(err):
		out.Kind = models.FetchTransient
	case errors.As(err, &ue):
		out.Kind = models.FetchTransient
	}
	return out
}

// Permanent builds a permanent FetchError for a provider-level rejection.
func Permanent(p models.Provider, seriesID string, err error) error {
	return &models.FetchError{Kind: models.FetchPermanent, Provider: p, SeriesID: seriesID, Err: err}
}
