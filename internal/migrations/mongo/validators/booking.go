package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"traveler_id",
			"contact",
			"source_type",
			"source_id",
			"payment_reference",
			"lines",
			"total_price",
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

			"contact": bson.M{
				"bsonType": "object",
				"required": []string{"first_name", "last_name", "phone"},
				"properties": bson.M{
					"first_name": bson.M{"bsonType": "string", "minLength": 1, "maxLength": 50},
					"last_name":  bson.M{"bsonType": "string", "minLength": 1, "maxLength": 50},
					"phone": bson.M{
						"bsonType": "string",
						"pattern":  "^\\+[1-9]\\d{6,14}$",
					},
				},
			},

			"source_type": bson.M{
				"enum": []string{"standard", "cart", "customized"},
			},

			"source_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"payment_reference": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"lines": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"tour_type", "price", "tour_date", "status"},
					"properties": bson.M{
						"tour_type":  bson.M{"enum": []string{"standard", "customized"}},
						"group_size": bson.M{"bsonType": "int", "minimum": 0},
						"price":      bson.M{"bsonType": "number", "minimum": 0},
						"tour_date":  bson.M{"bsonType": "date"},
						"status":     bson.M{"enum": []string{"booked", "cancelled"}},
					},
				},
			},

			"total_price": bson.M{
				"bsonType": "number",
				"minimum":  0,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
