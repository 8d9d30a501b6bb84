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

// Package engine is the Outboard client runtime.
//
// An Engine owns one logical session against a bridge: Connect makes sure a
// bridge is answering (launching the bundled one when auto-start is enabled
// and nothing is reachable), queries and transactions ride the session, and
// Disconnect releases it, stopping the bridge only when this engine started
// it.
//
//	eng, err := engine.New(
//		engine.WithServiceURL("http://localhost:4466"),
//		engine.WithSchemaPath("db/schema.outboard"),
//	)
//	if err != nil {
//		return err
//	}
//	if err := eng.Connect(ctx); err != nil {
//		return err
//	}
//	defer eng.Disconnect(context.Background())
//
//	result, err := eng.Query(ctx, `{"action":"findMany","model":"User"}`, "")
//
// Interactive transactions bracket related queries:
//
//	tx, err := eng.StartTransaction(ctx, "")
//	if err != nil {
//		return err
//	}
//	if _, err := eng.Query(ctx, payload, tx); err != nil {
//		eng.RollbackTransaction(ctx, tx)
//		return err
//	}
//	return eng.CommitTransaction(ctx, tx)
//
// Every operation takes a context; blocking use is calling with
// context.Background(). One engine is safe for concurrent queries once
// Connected. Queries are never retried by any layer below the caller:
// replaying a write that may have been applied is the caller's call to
// make, never the transport's.
package engine
