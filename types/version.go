package types

// Version is the canonical project version shared by the CLI and archive records.
const Version = "0.3.0"

// ArchiveContractVersion versions the archived record and notification shapes.
const ArchiveContractVersion = "0.1.0"
