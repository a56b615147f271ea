package repository

// UpsertResult reports what an upsert did.  The JSON shape matches the
// driver result the front end has always received under "result".
type UpsertResult struct {
	Acknowledged  bool  `json:"acknowledged"`
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
	UpsertedCount int64 `json:"upsertedCount"`
	UpsertedID    any   `json:"upsertedId"`

	// RemovedUIDs lists profiles deleted because another uid took their email.
	RemovedUIDs []string `json:"-"`
}

// Inserted reports whether the upsert created a new document.
func (r UpsertResult) Inserted() bool { return r.UpsertedCount > 0 }

// DeleteResult reports how many documents a delete removed.
type DeleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}
