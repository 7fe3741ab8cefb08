package subject

// Validate fails with a *ConflictingOperationError when the subject is
// scheduled for more than one of insert, update and remove.
func (s *Subject) Validate() error {
	inserted, updated := s.MustBeInserted(), s.MustBeUpdated()
	switch {
	case inserted && s.MustBeRemoved:
		return s.conflict(ConflictInsertRemove)
	case updated && s.MustBeRemoved:
		return s.conflict(ConflictUpdateRemove)
	case inserted && updated:
		return s.conflict(ConflictInsertUpdate)
	}
	return nil
}

func (s *Subject) conflict(c Conflict) error {
	return &ConflictingOperationError{
		Entity:     s.meta.Name,
		Identifier: s.Identifier(),
		SubjectID:  s.ID,
		Conflict:   c,
	}
}
