// Package carton packs files and directory trees into archive streams and
// safely unpacks archive streams back onto the filesystem, independent of
// the concrete archive format.
//
// The format is supplied by a codec adapter: WriteCodec encodes entries on
// the way in, ReadCodec decodes them on the way out. Reference codecs live
// in the tarcodec, zipcodec and estargzcodec packages; any type satisfying
// the interfaces plugs in the same way.
//
// # Packing
//
// A Builder wraps a WriteCodec and normalizes names, timestamps and
// permission bits before handing entries to the codec:
//
//	w, err := tarcodec.NewWriter(out, tarcodec.Options{Compression: tarcodec.Gzip})
//	if err != nil {
//	    return err
//	}
//	b := carton.NewBuilder(w, nil)
//	if err := b.AddTree("dist", "./build"); err != nil {
//	    return err
//	}
//	if err := b.Close(); err != nil {
//	    return err
//	}
//
// # Unpacking
//
// Extract drives a ReadCodec and reproduces entries under a destination
// directory. Archive content is treated as hostile: names are re-validated
// against path traversal and symlink targets are checked against the
// configured policy before anything touches the filesystem.
//
//	r, err := tarcodec.NewReader(in)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	err = carton.Extract(ctx, r, dest,
//	    carton.WithSymlinkPolicy(carton.SymlinkDisallow),
//	    carton.WithStripPrefix("dist"),
//	)
//
// # Error recovery
//
// Extraction failures are routed through a per-entry error handler that
// chooses between BailOut, Abort, Retry, Skip and SkipAll, allowing callers
// to trade completeness against strictness. Abort rolls back every path the
// call created and reports success.
package carton
