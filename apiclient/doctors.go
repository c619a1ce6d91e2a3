package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Doctors lists doctors matching q.
func (b *Bound) Doctors(ctx context.Context, q DoctorsQuery) (*DoctorsPage, error) {
	values := url.Values{}
	pageValues(values, q.Page)
	if q.Limit > 0 {
		values.Set("limit", fmt.Sprint(q.Limit))
	}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.Specialization != "" {
		values.Set("specialization", q.Specialization)
	}

	var out DoctorsPage
	err := b.do(ctx, call{
		name:   "doctors",
		method: http.MethodGet,
		path:   "/doctors",
		query:  values,
		out:    &out,
		auth:   authRequired,
		retry:  true,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Specializations lists the known specializations. Once retries are exhausted it
// degrades to an empty list; only a rejected credential is reported.
func (b *Bound) Specializations(ctx context.Context) ([]string, error) {
	var out specializationsEnvelope
	err := b.do(ctx, call{
		name:   "specializations",
		method: http.MethodGet,
		path:   "/specializations",
		out:    &out,
		auth:   authOptional,
		retry:  true,
	})
	if errors.Is(err, ErrUnauthorized) {
		return nil, err
	}
	if err != nil {
		b.c.log.WithError(err).Warn("specializations unavailable, continuing without filter options")
		return []string{}, nil
	}
	if out.Data == nil {
		return []string{}, nil
	}
	return out.Data, nil
}
