package queries

import (
	"context"

	"github.com/redbco/redb-connector/pkg/connector"
)

// recordingSession counts transaction calls; it never talks to a server.
type recordingSession struct {
	inTxn     bool
	started   int
	committed int
	aborted   int

	startErr  error
	commitErr error
}

func (s *recordingSession) StartTransaction() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.inTxn = true
	s.started++
	return nil
}

func (s *recordingSession) CommitTransaction(context.Context) error {
	s.inTxn = false
	s.committed++
	return s.commitErr
}

func (s *recordingSession) AbortTransaction(context.Context) error {
	s.inTxn = false
	s.aborted++
	return nil
}

func (s *recordingSession) InTransaction() bool                         { return s.inTxn }
func (s *recordingSession) Context(ctx context.Context) context.Context { return ctx }
func (s *recordingSession) EndSession(context.Context)                  {}

type fixtures struct {
	user  *connector.Model
	group *connector.Model

	id, name, age, email, groupIDs *connector.ScalarField
	groupID, memberIDs             *connector.ScalarField

	groups *connector.RelationField
}

func newFixtures() fixtures {
	var f fixtures
	f.id = &connector.ScalarField{Name: "id", DBName: "_id", Type: connector.TypeObjectID, IsID: true}
	f.name = &connector.ScalarField{Name: "name", Type: connector.TypeString}
	f.age = &connector.ScalarField{Name: "age", Type: connector.TypeInt}
	f.email = &connector.ScalarField{Name: "email", DBName: "mail", Type: connector.TypeString}
	f.groupIDs = &connector.ScalarField{Name: "groupIds", Type: connector.TypeObjectID, IsList: true}
	f.user = connector.NewModel("User", "users", f.id, f.name, f.age, f.email, f.groupIDs)

	f.groupID = &connector.ScalarField{Name: "id", DBName: "_id", Type: connector.TypeObjectID, IsID: true}
	f.memberIDs = &connector.ScalarField{Name: "memberIds", Type: connector.TypeObjectID, IsList: true}
	f.group = connector.NewModel("Group", "groups", f.groupID, f.memberIDs)

	f.groups = &connector.RelationField{
		Name:         "groups",
		Model:        f.user,
		RelatedModel: f.group,
		IDsField:     f.groupIDs,
		BackIDsField: f.memberIDs,
	}
	return f
}
