package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/GregMSThompson/potsync-backend/infra/cloudrun"
	"github.com/GregMSThompson/potsync-backend/infra/docker"
	"github.com/GregMSThompson/potsync-backend/infra/firestore"
	"github.com/GregMSThompson/potsync-backend/infra/identity"
	"github.com/GregMSThompson/potsync-backend/infra/kms"
	"github.com/GregMSThompson/potsync-backend/infra/provider"
	"github.com/GregMSThompson/potsync-backend/infra/secret"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		// set default provider with the correct project
		prov, err := provider.SetupDefaultProvider(ctx)
		if err != nil {
			return err
		}

		// enable identity service to allow using firebase
		_, err = identity.SetupIdentity(ctx, prov)
		if err != nil {
			return err
		}

		// enable firestore and create a database for the project
		err = firestore.SetupFirestore(ctx, prov)
		if err != nil {
			return err
		}

		// create docker repo for the api and worker images
		repo, err := docker.CreateCloudrunRepo(ctx)
		if err != nil {
			return err
		}

		// key ring + crypto key for sealing stored bank tokens
		_, err = kms.SetupKMS(ctx, prov)
		if err != nil {
			return err
		}

		keyName, err := kms.CreateKey(ctx, prov, "potsync", "link-tokens")
		if err != nil {
			return err
		}

		sa, err := cloudrun.SetupCloudRun(ctx, prov, keyName, repo)
		if err != nil {
			return err
		}

		// the app creates provider OAuth secrets at runtime, so the
		// service account needs admin on secret manager
		_, err = secret.SetupSecretManager(ctx, prov, sa)
		if err != nil {
			return err
		}

		return kms.GrantKeyAccess(ctx, prov, sa)
	})
}
