package dynamo

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/unifiro-api/internal/config"
)

// Bootstrap creates the account, uniqueness and intake tables that are
// missing. Existing tables are left alone, so it runs on every startup.
func Bootstrap(ctx context.Context, client API, tables config.Dynamo, log zerolog.Logger) {
	for _, name := range []string{tables.Users, tables.Organizers} {
		createTable(ctx, client, log, accountTable(name))
	}
	createTable(ctx, client, log, hashKeyTable(tables.Uniques, attrUniqueKey))
	for _, name := range []string{tables.Contacts, tables.Registrations, tables.StartupApplications} {
		createTable(ctx, client, log, hashKeyTable(name, "id"))
	}
}

func hashKeyTable(name, key string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName:            aws.String(name),
		BillingMode:          types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{stringAttr(key)},
		KeySchema:            []types.KeySchemaElement{{AttributeName: aws.String(key), KeyType: types.KeyTypeHash}},
	}
}

// accountTable keys accounts by id, with one lookup index per alternate key.
func accountTable(name string) *dynamodb.CreateTableInput {
	in := hashKeyTable(name, attrAccountID)
	for _, ix := range []struct{ index, attr string }{
		{indexEmail, attrEmail},
		{indexMobile, attrMobile},
		{indexResetDigest, attrResetDigest},
	} {
		in.AttributeDefinitions = append(in.AttributeDefinitions, stringAttr(ix.attr))
		in.GlobalSecondaryIndexes = append(in.GlobalSecondaryIndexes, types.GlobalSecondaryIndex{
			IndexName:  aws.String(ix.index),
			KeySchema:  []types.KeySchemaElement{{AttributeName: aws.String(ix.attr), KeyType: types.KeyTypeHash}},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}
	return in
}

func stringAttr(name string) types.AttributeDefinition {
	return types.AttributeDefinition{AttributeName: aws.String(name), AttributeType: types.ScalarAttributeTypeS}
}

func createTable(ctx context.Context, client API, log zerolog.Logger, input *dynamodb.CreateTableInput) {
	_, err := client.CreateTable(ctx, input)
	if err != nil {
		var riue *types.ResourceInUseException
		if !errors.As(err, &riue) {
			log.Warn().Err(err).Str("table", aws.ToString(input.TableName)).Msg("could not create table")
		}
		return
	}
	log.Info().Str("table", aws.ToString(input.TableName)).Msg("created table")
}
