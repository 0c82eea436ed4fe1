package authority_test

import (
	"context"
	"log"
	"testing"

	"contraflow/bizerror"
	"contraflow/domain"
	"contraflow/domain/authority"
	"contraflow/persistence"
	"contraflow/testinfra"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
)

func setup(t *testing.T) *testinfra.TestDatabase {
	testDatabase := testinfra.StartMysqlTestDatabase("contraflow")
	persistence.ActiveDataSourceManager = testDatabase.DS
	err := testDatabase.DS.GormDB(context.Background()).AutoMigrate(&authority.SigningAuthority{}).Error
	if err != nil {
		log.Fatalf("database migration failed %v\n", err)
	}
	return testDatabase
}

func TestHasAuthority(t *testing.T) {
	RegisterTestingT(t)

	testDatabase := setup(t)
	defer testinfra.StopMysqlTestDatabase(testDatabase)

	admin := testinfra.BuildSecCtx(types.ID(1), domain.RoleLegalAdmin)

	t.Run("no record means no authority", func(t *testing.T) {
		granted, err := authority.HasAuthority(types.ID(500), 0, "msa", admin)
		Expect(err).To(BeNil())
		Expect(granted).To(BeFalse())
	})

	t.Run("a wildcard entity record grants any contract type", func(t *testing.T) {
		_, err := authority.CreateAuthority(&authority.AuthorityCreation{
			EntityID: types.ID(100), UserID: types.ID(7)}, admin)
		Expect(err).To(BeNil())

		granted, err := authority.HasAuthority(types.ID(100), 0, "msa", admin)
		Expect(err).To(BeNil())
		Expect(granted).To(BeTrue())

		granted, err = authority.HasAuthority(types.ID(100), 0, "nda", admin)
		Expect(err).To(BeNil())
		Expect(granted).To(BeTrue())
	})

	t.Run("a typed record only matches its contract type", func(t *testing.T) {
		_, err := authority.CreateAuthority(&authority.AuthorityCreation{
			EntityID: types.ID(200), UserID: types.ID(7), ContractTypePattern: "msa"}, admin)
		Expect(err).To(BeNil())

		granted, err := authority.HasAuthority(types.ID(200), 0, "MSA", admin)
		Expect(err).To(BeNil())
		Expect(granted).To(BeTrue())

		granted, err = authority.HasAuthority(types.ID(200), 0, "nda", admin)
		Expect(err).To(BeNil())
		Expect(granted).To(BeFalse())
	})

	t.Run("a project scoped record never leaks into other projects", func(t *testing.T) {
		_, err := authority.CreateAuthority(&authority.AuthorityCreation{
			EntityID: types.ID(300), ProjectID: types.ID(31), UserID: types.ID(7)}, admin)
		Expect(err).To(BeNil())

		granted, err := authority.HasAuthority(types.ID(300), types.ID(31), "msa", admin)
		Expect(err).To(BeNil())
		Expect(granted).To(BeTrue())

		granted, err = authority.HasAuthority(types.ID(300), types.ID(32), "msa", admin)
		Expect(err).To(BeNil())
		Expect(granted).To(BeFalse())

		// a contract without project scope is not covered by a project record
		granted, err = authority.HasAuthority(types.ID(300), 0, "msa", admin)
		Expect(err).To(BeNil())
		Expect(granted).To(BeFalse())
	})

	t.Run("creation requires a privileged role and defaults the pattern", func(t *testing.T) {
		outsider := testinfra.BuildSecCtx(types.ID(9))
		_, err := authority.CreateAuthority(&authority.AuthorityCreation{
			EntityID: types.ID(400), UserID: types.ID(7)}, outsider)
		Expect(err).To(Equal(bizerror.ErrForbidden))

		record, err := authority.CreateAuthority(&authority.AuthorityCreation{
			EntityID: types.ID(400), UserID: types.ID(7)}, admin)
		Expect(err).To(BeNil())
		Expect(record.ContractTypePattern).To(Equal("*"))

		records, err := authority.QueryAuthorities(&authority.AuthorityQuery{EntityID: types.ID(400)}, admin)
		Expect(err).To(BeNil())
		Expect(len(*records)).To(Equal(1))
	})
}
