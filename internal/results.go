package internal

import "gopkg.in/mgo.v2/bson"

// IsMasterResult is the result of executing the
// ismaster command.
type IsMasterResult struct {
	IsMaster            bool          `bson:"ismaster"`
	MaxBSONObjectSize   uint32        `bson:"maxBsonObjectSize"`
	MaxMessageSizeBytes uint32        `bson:"maxMessageSizeBytes"`
	MaxWriteBatchSize   uint16        `bson:"maxWriteBatchSize"`
	Me                  string        `bson:"me"`
	MaxWireVersion      uint8         `bson:"maxWireVersion"`
	MinWireVersion      uint8         `bson:"minWireVersion"`
	OK                  bool          `bson:"ok"`
	ReadOnly            bool          `bson:"readOnly"`
	Compression         []string      `bson:"compression"`
	SaslSupportedMechs  []string      `bson:"saslSupportedMechs"`
	ElectionID          bson.ObjectId `bson:"electionId,omitempty"`
}

// BuildInfoResult is the result of executing the
// buildInfo command.
type BuildInfoResult struct {
	GitVersion   string  `bson:"gitVersion"`
	Version      string  `bson:"version"`
	VersionArray []uint8 `bson:"versionArray"`
}

// GetLastErrorResult is the result of executing the
// getLastError command.
type GetLastErrorResult struct {
	ConnectionID    uint32      `bson:"connectionId"`
	N               int         `bson:"n"`
	UpdatedExisting bool        `bson:"updatedExisting"`
	UpsertedID      interface{} `bson:"upserted,omitempty"`
	Err             string      `bson:"err,omitempty"`
	Code            int32       `bson:"code,omitempty"`
}
