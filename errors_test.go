/*
Copyright © 2025 the GAEZcal authors.
This file is part of GAEZcal.

GAEZcal is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GAEZcal is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GAEZcal.  If not, see <http://www.gnu.org/licenses/>.
*/

package gaezcal

import (
	"errors"
	"strings"
	"testing"
)

func TestLoadErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &LoadError{Key: "k", Kind: SourceMalformed, Err: inner}
	if !errors.Is(err, inner) {
		t.Error("LoadError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "source malformed") {
		t.Errorf("message %q should name the kind", err.Error())
	}
	if !strings.Contains(err.Error(), "k") {
		t.Errorf("message %q should name the key", err.Error())
	}
}

func TestLoadErrorKindString(t *testing.T) {
	if SourceUnavailable.String() != "source unavailable" {
		t.Error(SourceUnavailable.String())
	}
	if SourceMalformed.String() != "source malformed" {
		t.Error(SourceMalformed.String())
	}
	if !strings.Contains(LoadErrorKind(99).String(), "99") {
		t.Error(LoadErrorKind(99).String())
	}
}
