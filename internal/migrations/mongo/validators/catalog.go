package validators

import "go.mongodb.org/mongo-driver/bson"

var GuideValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"languages",
			"governorates",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"languages": bson.M{
				"bsonType": "array",
				"items":    bson.M{"bsonType": "string"},
			},

			"governorates": bson.M{
				"bsonType": "array",
				"items":    bson.M{"bsonType": "string"},
			},

			"rating": bson.M{
				"bsonType": "number",
				"minimum":  0,
				"maximum":  5,
			},

			"tour_requests": bson.M{
				"bsonType":    "array",
				"uniqueItems": true,
				"items":       bson.M{"bsonType": "string"},
			},
		},
	},
}

var TourValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"price",
			"max_group_size",
			"start_days",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"price": bson.M{
				"bsonType": "number",
				"minimum":  0,
			},

			"max_group_size": bson.M{
				"bsonType": "int",
				"minimum":  1,
			},

			"start_days": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"enum": []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
				},
			},

			"bookings": bson.M{
				"bsonType": "int",
				"minimum":  0,
			},
		},
	},
}

var CartValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"traveler_id",
			"items",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"traveler_id": bson.M{
				"bsonType": "string",
			},

			"items": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"tour_id", "group_size", "tour_date"},
					"properties": bson.M{
						"tour_id":    bson.M{"bsonType": "string"},
						"group_size": bson.M{"bsonType": "int", "minimum": 1},
						"tour_date":  bson.M{"bsonType": "string"},
					},
				},
			},
		},
	},
}
