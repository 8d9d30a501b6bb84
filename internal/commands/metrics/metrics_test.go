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

package metrics

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseLabels(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr string
	}{
		{
			name:  "no labels",
			pairs: nil,
			want:  nil,
		},
		{
			name:  "single pair",
			pairs: []string{"app=crm"},
			want:  map[string]string{"app": "crm"},
		},
		{
			name:  "multiple pairs",
			pairs: []string{"app=crm", "region=eu-west-1"},
			want:  map[string]string{"app": "crm", "region": "eu-west-1"},
		},
		{
			name:  "value may contain equals signs",
			pairs: []string{"query=a=b"},
			want:  map[string]string{"query": "a=b"},
		},
		{
			name:  "empty value is allowed",
			pairs: []string{"app="},
			want:  map[string]string{"app": ""},
		},
		{
			name:  "later pair wins on duplicate keys",
			pairs: []string{"app=one", "app=two"},
			want:  map[string]string{"app": "two"},
		},
		{
			name:    "missing separator",
			pairs:   []string{"appcrm"},
			wantErr: "want key=value",
		},
		{
			name:    "empty key",
			pairs:   []string{"=crm"},
			wantErr: "want key=value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLabels(tt.pairs)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("parseLabels(%v) succeeded, want error containing %q", tt.pairs, tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseLabels(%v) failed: %v", tt.pairs, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseLabels(%v) = %v, want %v", tt.pairs, got, tt.want)
			}
		})
	}
}
