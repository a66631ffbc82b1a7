package model

import "time"

// Review：挂在某条用户提交记录下的评价
type Review struct {
	ID           string    `json:"id"`
	ParentID     string    `json:"parentId"`
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	Rating       float64   `json:"rating"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"createdAt"`
	HelpfulCount int       `json:"helpfulCount"`
}

// Patch：记录的部分更新，nil 字段不修改
type Patch struct {
	Name                   *string  `json:"name,omitempty"`
	Address                *string  `json:"address,omitempty"`
	IsApproved             *bool    `json:"isApproved,omitempty"`
	IsFree                 *bool    `json:"isFree,omitempty"`
	IsWheelchairAccessible *bool    `json:"isWheelchairAccessible,omitempty"`
	Rating                 *float64 `json:"rating,omitempty"`
	ReviewCount            *int     `json:"reviewCount,omitempty"`
}

// Apply：把补丁应用到副本上
func (p Patch) Apply(c Candidate) Candidate {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	if p.IsApproved != nil {
		c.IsApproved = *p.IsApproved
	}
	if p.IsFree != nil {
		c.IsFree = *p.IsFree
	}
	if p.IsWheelchairAccessible != nil {
		c.IsWheelchairAccessible = *p.IsWheelchairAccessible
	}
	if p.Rating != nil {
		c.Rating = ClampRating(*p.Rating)
	}
	if p.ReviewCount != nil {
		c.ReviewCount = *p.ReviewCount
	}
	return c
}
