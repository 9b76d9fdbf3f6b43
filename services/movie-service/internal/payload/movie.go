package payload

// MovieListQuery holds the query parameters of paged listing endpoints.
type MovieListQuery struct {
	Page int `json:"page" validate:"min=1,max=500"`
}

// SearchQuery holds the parameters of the search endpoint.
type SearchQuery struct {
	Query string `json:"query" validate:"required,max=200"`
	Page  int    `json:"page"  validate:"min=1,max=500"`
}

// MovieIDParam holds the path parameter of the details endpoint.
type MovieIDParam struct {
	ID int `json:"id" validate:"gt=0"`
}
