// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"strings"
)

// resourceURI is a parsed s2://basin[/stream] argument.
type resourceURI struct {
	Basin  string
	Stream string // empty if the URI names only a basin
}

func parseResourceURI(raw string) (resourceURI, error) {
	const schemePrefix = "s2://"
	if !strings.HasPrefix(raw, schemePrefix) {
		return resourceURI{}, fmt.Errorf("expected an s2://basin[/stream] URI, got %q", raw)
	}
	rest := raw[len(schemePrefix):]
	if rest == "" {
		return resourceURI{}, fmt.Errorf("s2:// URI is missing a basin")
	}
	basin, stream, found := strings.Cut(rest, "/")
	if !found {
		return resourceURI{Basin: basin}, nil
	}
	return resourceURI{Basin: basin, Stream: stream}, nil
}
