package rotor

import (
	"errors"

	"gopkg.in/mgo.v2/bson"
)

func getOrInsertID(document interface{}) (bson.M, interface{}, error) {
	bytes, err := bson.Marshal(document)
	if err != nil {
		return nil, nil, err
	}

	// The round trip loses the field order of the user's document, but
	// lets us inject an _id regardless of the input type.
	var doc bson.M
	err = bson.Unmarshal(bytes, &doc)
	if err != nil {
		return nil, nil, err
	}

	var id interface{}
	if docID, ok := doc["_id"]; ok {
		id = docID
	} else {
		id = bson.NewObjectId()
		doc["_id"] = id
	}

	return doc, id, nil
}

// firstKey returns the name of the first element in the marshaled form
// of document.
func firstKey(document interface{}) (string, error) {
	bytes, err := bson.Marshal(document)
	if err != nil {
		return "", err
	}

	var doc bson.D
	err = bson.Unmarshal(bytes, &doc)
	if err != nil {
		return "", err
	}

	if len(doc) == 0 {
		return "", nil
	}
	return doc[0].Name, nil
}

func ensureUpdateDoc(update interface{}) error {
	key, err := firstKey(update)
	if err != nil {
		return err
	}
	if key != "" && key[0] != '$' {
		return errors.New("update document must contain key beginning with '$'")
	}
	return nil
}

func ensureReplacementDoc(replacement interface{}) error {
	key, err := firstKey(replacement)
	if err != nil {
		return err
	}
	if key != "" && key[0] == '$' {
		return errors.New("replacement document cannot contain keys beginning with '$'")
	}
	return nil
}
