package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/hongminglow/crm-backend/internal/http/respond"
	"github.com/rs/zerolog/hlog"
)

const (
	msgInvalidBody   = "Invalid request body."
	msgInternalError = "Internal server error."
	msgUserNotFound  = "User not found."
	msgEmailInUse    = "Email is already in use."
	msgPasswordLong  = "Password is too long."
)

const maxBodyBytes = 1 << 20

// decodeJSON reads exactly one JSON object into dst, rejecting unknown fields,
// mistyped values and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// internalError logs err for operators and answers with the generic 500 body.
func internalError(w http.ResponseWriter, r *http.Request, err error, action string) {
	hlog.FromRequest(r).Error().Err(err).Msg(action)
	respond.Error(w, r, http.StatusInternalServerError, msgInternalError)
}
