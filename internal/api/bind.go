/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-voicecmd/internal/logging"
)

const maxBodyBytes = 1 << 16

var (
	validateOnce sync.Once
	validate     *validator.Validate
	translator   ut.Translator
)

// requestValidator returns the shared validator. Field errors are reported
// under their json names.
func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		english := en.New()
		trans, found := ut.New(english, english).GetTranslator("en")
		if !found {
			logging.LogWarn("Validator translator not found", zap.String("locale", "en"))
		} else if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
			logging.LogError(err, "Failed to register validator translations")
		} else {
			translator = trans
		}
		validate = v
	})
	return validate
}

// bindError is a request body rejected by decoding or validation.
type bindError struct {
	status  int
	message string
}

func (e *bindError) Error() string { return e.message }

// decodeJSON reads one JSON object into dst, applies normalize and validates
// the result. Bodies over maxBodyBytes are rejected with 413.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, dst *T, normalize func(*T)) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &bindError{status: http.StatusRequestEntityTooLarge, message: "Request body too large"}
		}
		return &bindError{status: http.StatusBadRequest, message: "Invalid JSON"}
	}
	if dec.More() {
		return &bindError{status: http.StatusBadRequest, message: "Unexpected trailing data"}
	}
	if normalize != nil {
		normalize(dst)
	}

	return checkStruct(dst)
}

// checkStruct validates v and maps the first failing field to a bindError.
func checkStruct(v any) error {
	err := requestValidator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate request: %w", err)
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return &bindError{status: http.StatusBadRequest, message: fe.Field() + " is required"}
	case "max":
		return &bindError{status: http.StatusRequestEntityTooLarge, message: fe.Field() + " is too long"}
	case "datetime":
		return &bindError{status: http.StatusBadRequest, message: fe.Field() + " must be RFC3339"}
	}
	return &bindError{status: http.StatusBadRequest, message: fieldMessage(fe, translator)}
}

// fieldMessage falls back to the raw field error when the English
// translations failed to load.
func fieldMessage(fe validator.FieldError, trans ut.Translator) string {
	if trans == nil {
		return fe.Error()
	}
	return fe.Translate(trans)
}

// writeBindError reports a decodeJSON failure.
func writeBindError(w http.ResponseWriter, err error) {
	var be *bindError
	if errors.As(err, &be) {
		writeError(w, be.status, be.message)
		return
	}
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
