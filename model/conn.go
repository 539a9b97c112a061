package model

// Conn is a description of a connection, built from the
// handshake with the server it is connected to.
type Conn struct {
	ID   string
	Addr Addr

	GitVersion          string
	Version             Version
	MaxBSONObjectSize   uint32
	MaxMessageSizeBytes uint32
	MaxWriteBatchSize   uint16
	ReadOnly            bool
	WireVersion         Range
	Compression         []string
	SaslSupportedMechs  []string
}
