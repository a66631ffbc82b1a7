package mongostore

import (
	"time"

	"restroom-api/internal/model"
)

// restroomDocument：restrooms 集合中的记录
// 约束：不包含 DistanceFromUser 与 IsFilteredOut
type restroomDocument struct {
	ID       string            `bson:"_id"`
	Name     string            `bson:"name"`
	Address  string            `bson:"address,omitempty"`
	Location model.Coordinates `bson:"location"`
	Category string            `bson:"category"`

	Amenities amenitiesDocument `bson:"amenities"`

	CleanlinessRating  float64 `bson:"cleanlinessRating"`
	AvailabilityRating float64 `bson:"availabilityRating"`
	Rating             float64 `bson:"rating"`
	ReviewCount        int     `bson:"reviewCount"`

	Source            string `bson:"source"`
	SubmittedBy       string `bson:"submittedBy,omitempty"`
	FromCommercial    bool   `bson:"isFromCommercialProvider"`
	CommercialPlaceID string `bson:"commercialPlaceId,omitempty"`
	IsApproved        bool   `bson:"isApproved"`

	SubmittedAt *time.Time `bson:"submittedAt,omitempty"`
	LastUpdated *time.Time `bson:"lastUpdated,omitempty"`
}

type amenitiesDocument struct {
	Public               bool `bson:"public"`
	Free                 bool `bson:"free"`
	GenderNeutral        bool `bson:"genderNeutral"`
	BabyFriendly         bool `bson:"babyFriendly"`
	DogFriendly          bool `bson:"dogFriendly"`
	WheelchairAccessible bool `bson:"wheelchairAccessible"`
	ChangingTable        bool `bson:"changingTable"`
	Paper                bool `bson:"paper"`
	Soap                 bool `bson:"soap"`
	HandDryer            bool `bson:"handDryer"`
	RunningWater         bool `bson:"runningWater"`
	Shower               bool `bson:"shower"`
}

type reviewDocument struct {
	ID           string    `bson:"_id"`
	ParentID     string    `bson:"parentId"`
	UserID       string    `bson:"userId,omitempty"`
	UserName     string    `bson:"userName,omitempty"`
	Rating       float64   `bson:"rating"`
	Comment      string    `bson:"comment,omitempty"`
	CreatedAt    time.Time `bson:"createdAt"`
	HelpfulCount int       `bson:"helpfulCount"`
}

func toRestroomDocument(c model.Candidate) restroomDocument {
	return restroomDocument{
		ID:       c.ID,
		Name:     c.Name,
		Address:  c.Address,
		Location: c.Location,
		Category: string(c.Category),
		Amenities: amenitiesDocument{
			Public:               c.IsPublic,
			Free:                 c.IsFree,
			GenderNeutral:        c.IsGenderNeutral,
			BabyFriendly:         c.IsBabyFriendly,
			DogFriendly:          c.IsDogFriendly,
			WheelchairAccessible: c.IsWheelchairAccessible,
			ChangingTable:        c.HasChangingTable,
			Paper:                c.HasPaper,
			Soap:                 c.HasSoap,
			HandDryer:            c.HasHandDryer,
			RunningWater:         c.HasRunningWater,
			Shower:               c.HasShower,
		},
		CleanlinessRating:  c.CleanlinessRating,
		AvailabilityRating: c.AvailabilityRating,
		Rating:             c.Rating,
		ReviewCount:        c.ReviewCount,
		Source:             string(c.Source),
		SubmittedBy:        c.SubmittedBy,
		FromCommercial:     c.IsFromCommercialProvider,
		CommercialPlaceID:  c.CommercialPlaceID,
		IsApproved:         c.IsApproved,
		SubmittedAt:        c.SubmittedAt,
		LastUpdated:        c.LastUpdated,
	}
}

func mapRestroomDocument(d restroomDocument) model.Candidate {
	return model.Candidate{
		ID:                       d.ID,
		Name:                     d.Name,
		Address:                  d.Address,
		Location:                 d.Location,
		Category:                 model.ParseCategory(d.Category),
		IsPublic:                 d.Amenities.Public,
		IsFree:                   d.Amenities.Free,
		IsGenderNeutral:          d.Amenities.GenderNeutral,
		IsBabyFriendly:           d.Amenities.BabyFriendly,
		IsDogFriendly:            d.Amenities.DogFriendly,
		IsWheelchairAccessible:   d.Amenities.WheelchairAccessible,
		HasChangingTable:         d.Amenities.ChangingTable,
		HasPaper:                 d.Amenities.Paper,
		HasSoap:                  d.Amenities.Soap,
		HasHandDryer:             d.Amenities.HandDryer,
		HasRunningWater:          d.Amenities.RunningWater,
		HasShower:                d.Amenities.Shower,
		CleanlinessRating:        d.CleanlinessRating,
		AvailabilityRating:       d.AvailabilityRating,
		Rating:                   model.ClampRating(d.Rating),
		ReviewCount:              d.ReviewCount,
		Source:                   model.Source(d.Source),
		SubmittedBy:              d.SubmittedBy,
		IsFromCommercialProvider: d.FromCommercial,
		CommercialPlaceID:        d.CommercialPlaceID,
		IsApproved:               d.IsApproved,
		SubmittedAt:              d.SubmittedAt,
		LastUpdated:              d.LastUpdated,
	}
}

func toReviewDocument(r model.Review) reviewDocument {
	return reviewDocument(r)
}

func mapReviewDocument(d reviewDocument) model.Review {
	return model.Review(d)
}
