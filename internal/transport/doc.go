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

/*
Package transport carries logical operations to the bridge as HTTP
exchanges. It knows how to reach the bridge, tag requests, and classify
failures; it does not know what any endpoint means.

# Basic Usage

	c, err := transport.New("http://localhost:4466")
	if err != nil {
	    return err
	}
	defer c.Close()

	raw, err := c.Request(ctx, http.MethodPost, "/", payload, nil)

Callers that speak a protocol header pass it through:

	header := http.Header{}
	header.Set("X-transaction-id", string(txID))
	raw, err := c.Request(ctx, http.MethodPost, "/", payload, header)

# Failure Classification

Every failure surfaces as *errors.TransportError: connection-level failures
carry the cause, non-2xx statuses carry the status code and a body snippet,
and 2xx responses that are not valid JSON carry a decode cause. Callers
branch on the structure rather than parsing message strings.

# Request Tagging

Each request gets a fresh X-Request-ID. The correlation ID travels from the
context via the logging round tripper in pkg/httpclient, so one logical
operation that fans out into several exchanges shares one correlation ID
across them.

# No Retries

The bridge treats POST as a state transition; replaying one can double-apply
a write. The client is therefore built without a retry layer. Callers that
want resilience on idempotent probes use their own polling loops with
fresh requests.
*/
package transport
