// Package connector defines the capability contract between the query engine
// and its storage backends.
//
// The engine holds a Connection per logical database connection. A Connection
// owns exactly one backend session and implements ReadOperations and
// WriteOperations. A Transaction is minted from a Connection with
// StartTransaction and implements the same ConnectionLike contract, so engine
// code never needs to know which of the two it holds:
//
//	conn, err := connector.GlobalRegistry().Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	tx, err := conn.StartTransaction(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	if _, err := tx.CreateRecord(ctx, user, args); err != nil {
//	    _ = tx.Rollback(ctx)
//	    return err
//	}
//	return tx.Commit(ctx)
//
// While a Transaction is alive its Connection refuses direct use, and a
// committed or rolled back Transaction refuses every further call. Closing a
// Connection aborts a Transaction that was never finished.
//
// # Error Handling
//
// Connectors never return raw driver errors. Failures are one of:
//
//   - UnsupportedOperationError: the backend has no mapping for the request
//     (for example an isolation level); match with IsUnsupported.
//   - DatabaseError: a translated backend failure carrying a Kind, the driver
//     code and message, and whether the failure is transient.
//   - ProgrammingError: a caller contract violation (finished transaction,
//     borrowed connection, overlapping calls, unimplemented operation); match
//     with IsProgrammingError. These are never retried.
//
// Use errors.Is with the exported sentinels for finer checks:
//
//	if errors.Is(err, connector.ErrUniqueConstraint) {
//	    // duplicate key
//	}
package connector
