// Package drive wraps the Google Drive v3 API for drivetransfer.
//
// Client is a thin layer over drive.Service that converts API objects into
// this package's own types. Gateway builds the two user-facing operations on
// top of it:
//   - ListOwnDocuments: the five most recently modified Google-native
//     documents (Docs, Sheets, Slides, Forms, Drawings), optionally filtered
//     by a name substring
//   - TransferOwnership: a four-step sequence that invites another account to
//     become the owner of a file
//
// Gateway never holds credentials itself. It asks a Session for an
// authenticated Client on every call and fails with ErrNotAuthenticated when
// there is none.
//
// Ownership transfer only creates a pending invitation. The receiver still
// has to accept it in their own Drive before ownership moves.
//
// Example usage:
//
//	gw := drive.NewGateway(sess, drive.WithLogger(logger), drive.WithMetrics(metrics))
//	files, err := gw.ListOwnDocuments(ctx, "budget")
//	if err != nil {
//	    return err
//	}
//	result, err := gw.TransferOwnership(ctx, files[0].ID, "bob@example.com")
package drive
