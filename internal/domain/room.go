package domain

// RoomID names one chat conversation, direct or group.
type RoomID string
