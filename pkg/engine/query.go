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

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/outboardhq/outboard/internal/log"
	"github.com/outboardhq/outboard/pkg/errors"
)

// transactionHeader attaches a query to an open interactive transaction.
const transactionHeader = "X-transaction-id"

func (e *Engine) requireConnected() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Connected {
		return &errors.NotConnectedError{}
	}
	return nil
}

// Query sends one query document to the bridge and returns its response
// verbatim. A non-empty tx scopes the query to that open transaction.
// Queries are never retried; the caller owns replay decisions.
func (e *Engine) Query(ctx context.Context, payload string, tx TransactionID) (json.RawMessage, error) {
	if err := e.requireConnected(); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "engine.query")
	defer span.End()

	if e.logQueries {
		log.Trace(e.logger, "query", log.String("payload", payload))
	}

	var header http.Header
	if tx != "" {
		header = http.Header{}
		header.Set(transactionHeader, string(tx))
	}

	return e.transport.Request(ctx, http.MethodPost, "/", []byte(payload), header)
}

// StartTransaction opens an interactive transaction and returns its id.
// The payload carries transaction options (isolation, timeouts) and is
// passed to the bridge verbatim.
func (e *Engine) StartTransaction(ctx context.Context, payload string) (TransactionID, error) {
	if err := e.requireConnected(); err != nil {
		return "", err
	}

	ctx, span := e.tracer.Start(ctx, "engine.transaction.start")
	defer span.End()

	var body []byte
	if payload != "" {
		body = []byte(payload)
	}

	raw, err := e.transport.Request(ctx, http.MethodPost, "/transaction/start", body, nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode transaction response: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("bridge returned no transaction id")
	}

	e.logger.Debug("transaction started", log.String("tx_id", resp.ID))
	return TransactionID(resp.ID), nil
}

// CommitTransaction finalizes an open transaction. Committing a transaction
// that is unknown or already finalized surfaces the bridge's own refusal.
func (e *Engine) CommitTransaction(ctx context.Context, id TransactionID) error {
	return e.finalizeTransaction(ctx, id, "commit")
}

// RollbackTransaction discards an open transaction. Like commit, it is
// one-shot: the bridge refuses a second finalization.
func (e *Engine) RollbackTransaction(ctx context.Context, id TransactionID) error {
	return e.finalizeTransaction(ctx, id, "rollback")
}

func (e *Engine) finalizeTransaction(ctx context.Context, id TransactionID, verb string) error {
	if id == "" {
		return fmt.Errorf("transaction id is empty")
	}
	if err := e.requireConnected(); err != nil {
		return err
	}

	ctx, span := e.tracer.Start(ctx, "engine.transaction."+verb)
	defer span.End()

	path := "/transaction/" + url.PathEscape(string(id)) + "/" + verb
	if _, err := e.transport.Request(ctx, http.MethodPost, path, nil, nil); err != nil {
		return err
	}

	e.logger.Debug("transaction finalized",
		log.String("tx_id", string(id)),
		log.String("outcome", verb))
	return nil
}
