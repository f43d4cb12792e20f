package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Create registers a house with its initial members.
	Create(ctx context.Context, name string, memberUserIDs []snowflake.ID) (*House, error)

	Get(ctx context.Context, id snowflake.ID) (*House, error)

	// AddMember enrolls one user. Adding an existing member fails with
	// ErrMemberExists.
	AddMember(ctx context.Context, houseID, userID snowflake.ID) (*HouseMember, error)

	// Members lists a house's members in join order.
	Members(ctx context.Context, houseID snowflake.ID) ([]*HouseMember, error)

	List(ctx context.Context, limit int) ([]*House, error)
}

var (
	ErrNotFound     = errors.New("house_not_found")
	ErrInvalidName  = errors.New("invalid_name")
	ErrNoMembers    = errors.New("no_members")
	ErrMemberExists = errors.New("member_exists")
)
