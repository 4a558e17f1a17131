package models

// ProjectGraph is a project with its owned rows and every user they reference,
// keyed by id. Relations are resolved through Users instead of pointers.
type ProjectGraph struct {
	Project Project
	Bids    []Bid
	Reviews []Review
	Users   map[uint]User
}

// UserGraph is a user with the reviews they received and the reviewers.
type UserGraph struct {
	User            User
	ReviewsReceived []Review
	Users           map[uint]User
}

// ProjectSummary is a project with its client and assignee resolved.
type ProjectSummary struct {
	Project Project
	Users   map[uint]User
}
