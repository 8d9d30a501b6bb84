// Copyright 2025 The Outboard Authors
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

package errors

import "errors"

// Remediable defines errors that carry actionable guidance. Most failures in
// this package are environmental (missing runtime, misplaced bundle, dead
// process), so surfaces that show errors to users should print the
// remediation alongside the message.
type Remediable interface {
	error

	// Remediation returns guidance for resolving the error.
	// It never returns an empty string.
	Remediation() string
}

// RemediationOf extracts remediation guidance from anywhere in err's tree.
// It returns the empty string when no error in the tree is Remediable.
func RemediationOf(err error) string {
	var r Remediable
	if errors.As(err, &r) {
		return r.Remediation()
	}
	return ""
}
