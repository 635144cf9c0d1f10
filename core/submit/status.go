package submit

// Status is the per-entity record of the most recent attempt to push a
// schedule to the device. The zero attempt state is {false, "", true};
// after a submission settles the terminal state persists until the next
// attempt overwrites it.
type Status struct {
	Loading bool   `json:"loading"`
	Message string `json:"message"`
	OK      bool   `json:"ok"`
}

// DefaultStatus is the state an entity shows before any submission.
func DefaultStatus() Status {
	return Status{Loading: false, Message: "", OK: true}
}

// StatusStore provides access to per-entity submission statuses. Statuses are
// created lazily on first read and never deleted while the store lives.
type StatusStore interface {
	Status(entityID string) Status
	SetStatus(entityID string, st Status)
}
