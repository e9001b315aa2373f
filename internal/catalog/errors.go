package catalog

import "errors"

// Catalog errors.
var (
	ErrCategoryNotFound    = errors.New("category not found")
	ErrSubcategoryNotFound = errors.New("subcategory not found")
	ErrDuplicateName       = errors.New("name already exists")
	ErrValidation          = errors.New("validation failed")
)
