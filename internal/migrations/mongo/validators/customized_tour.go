package validators

import "go.mongodb.org/mongo-driver/bson"

var CustomizedTourValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"traveler_id",
			"governorate",
			"languages",
			"group_size",
			"start_date",
			"end_date",
			"status",
			"sent_requests",
			"responding_guides",
			"payment_status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"traveler_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"governorate": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 50,
			},

			"languages": bson.M{
				"bsonType":    "array",
				"minItems":    1,
				"uniqueItems": true,
				"items": bson.M{
					"bsonType": "string",
				},
			},

			"group_size": bson.M{
				"enum": []string{"1-4", "5-10", "More than 10"},
			},

			"start_date": bson.M{
				"bsonType": "date",
			},

			"end_date": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"enum": []string{"pending", "confirmed", "completed", "cancelled"},
			},

			"sent_requests": bson.M{
				"bsonType":    "array",
				"maxItems":    50,
				"uniqueItems": true,
				"items": bson.M{
					"bsonType": "string",
				},
			},

			"responding_guides": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"guide_id", "price"},
					"properties": bson.M{
						"guide_id": bson.M{"bsonType": "string"},
						"price": bson.M{
							"bsonType":         "number",
							"exclusiveMinimum": true,
							"minimum":          0,
						},
						"submitted_at": bson.M{"bsonType": "date"},
					},
				},
			},

			"accepted_guide": bson.M{
				"bsonType": "string",
			},

			"price": bson.M{
				"bsonType": "number",
				"minimum":  0,
			},

			"payment_status": bson.M{
				"enum": []string{"pending", "paid"},
			},

			"guide_confirm_completion": bson.M{
				"bsonType": "bool",
			},

			"user_confirm_completion": bson.M{
				"bsonType": "bool",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
