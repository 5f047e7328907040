package types

// Version is the canonical project version.
// The CLI reports it and cache entries are stamped with it; an entry
// written under another version reads as a miss.
const Version = "0.3.0"
