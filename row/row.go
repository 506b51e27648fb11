// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package row encodes the fixed-schema table row.
//
// A row is stored positionally in a fixed-size block:
//
//	| id (uint32 LE) | username [32]byte | email [255]byte |
//	0                4                   36                291
//
// Text fields are NUL-padded. Fixed layout lets a leaf page's capacity be
// derived from the page size alone.
package row

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dacapoday/sqlet"
)

const (
	IDSize       = 4
	UsernameSize = 32
	EmailSize    = 255

	IDOffset       = 0
	UsernameOffset = IDOffset + IDSize
	EmailOffset    = UsernameOffset + UsernameSize

	Size = IDSize + UsernameSize + EmailSize
)

// User-facing validation messages.
const (
	MsgSyntax     = "Syntax error. Could not parse statement."
	MsgNegativeID = "ID must be positive."
	MsgIDRange    = "ID is out of range."
	MsgTooLong    = "String is too long."
	MsgNUL        = "String contains a NUL byte."
)

// Row is a single table record keyed by ID.
type Row struct {
	ID       uint32
	Username string `validate:"maxbytes=32,nonul"`
	Email    string `validate:"maxbytes=255,nonul"`
}

// String formats the row as (id, username, email).
func (r Row) String() string {
	return fmt.Sprintf("(%d, %s, %s)", r.ID, r.Username, r.Email)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// max= counts runes; the columns are sized in bytes.
	err := v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	if err != nil {
		panic(err)
	}
	// NUL pads the stored column, so it cannot appear in the value.
	err = v.RegisterValidation("nonul", func(fl validator.FieldLevel) bool {
		return strings.IndexByte(fl.Field().String(), 0) < 0
	})
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks the text fields against their column widths and rejects
// NUL bytes.
func Validate(r Row) error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		msg := MsgTooLong
		if fields[0].Tag() == "nonul" {
			msg = MsgNUL
		}
		return sqlet.Invalid(strings.ToLower(fields[0].Field()), msg)
	}
	return sqlet.Invalid("", err.Error())
}

// Parse builds a Row from the textual arguments of an insert statement.
// The id is checked first, then username, then email.
func Parse(id, username, email string) (r Row, err error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		switch {
		case !errors.As(err, &numErr) || !errors.Is(numErr.Err, strconv.ErrRange):
			err = sqlet.Invalid("id", MsgSyntax)
		case strings.HasPrefix(id, "-"):
			err = sqlet.Invalid("id", MsgNegativeID)
		default:
			err = sqlet.Invalid("id", MsgIDRange)
		}
		return
	}
	if n < 0 {
		err = sqlet.Invalid("id", MsgNegativeID)
		return
	}
	if n > math.MaxUint32 {
		err = sqlet.Invalid("id", MsgIDRange)
		return
	}

	r = Row{ID: uint32(n), Username: username, Email: email}
	if err = Validate(r); err != nil {
		r = Row{}
	}
	return
}

// Encode writes r into dst, which must hold at least Size bytes.
// dst is not modified when validation fails.
func Encode(dst []byte, r Row) error {
	if err := Validate(r); err != nil {
		return err
	}
	if len(dst) < Size {
		return fmt.Errorf("row buffer of %d bytes, need %d", len(dst), Size)
	}
	dst = dst[:Size]
	binary.LittleEndian.PutUint32(dst[IDOffset:], r.ID)
	putText(dst[UsernameOffset:EmailOffset], r.Username)
	putText(dst[EmailOffset:Size], r.Email)
	return nil
}

// Marshal returns the encoded form of r.
func Marshal(r Row) ([]byte, error) {
	buf := make([]byte, Size)
	if err := Encode(buf, r); err != nil {
		return nil, err
	}
	return buf, nil
}

// Decode reads a row from src, which must hold at least Size bytes.
func Decode(src []byte) Row {
	return Row{
		ID:       binary.LittleEndian.Uint32(src[IDOffset:]),
		Username: text(src[UsernameOffset:EmailOffset]),
		Email:    text(src[EmailOffset:Size]),
	}
}

func putText(field []byte, s string) {
	n := copy(field, s)
	clear(field[n:])
}

func text(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}
