package models

import (
	"fmt"
	"strings"
	"time"
)

// RoomType distinguishes lecture rooms from laboratories.
type RoomType string

const (
	RoomTypeLecture RoomType = "Lec"
	RoomTypeLab     RoomType = "Lab"
)

// ParseRoomType normalises free-form room type input.
func ParseRoomType(raw string) (RoomType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "lec", "lecture":
		return RoomTypeLecture, nil
	case "lab", "laboratory":
		return RoomTypeLab, nil
	default:
		return "", fmt.Errorf("unknown room type %q", raw)
	}
}

// Room is a bookable space. Rooms are not scoped to a period.
type Room struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Type      RoomType  `db:"type" json:"type"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Block is a contiguous chunk of teaching hours of one room type.
type Block struct {
	Type  RoomType `json:"type"`
	Hours int      `json:"hours"`
}
