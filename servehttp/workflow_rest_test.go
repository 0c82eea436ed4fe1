package servehttp_test

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"contraflow/bizerror"
	"contraflow/domain"
	"contraflow/domain/stage"
	"contraflow/domain/workflow"
	"contraflow/servehttp"
	"contraflow/session"
	"contraflow/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func TestStartWorkflowRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterWorkflowHandler(router)

	t.Run("should return 400 when failed to bind", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/workflow-instances", bytes.NewReader([]byte(`bbb`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"common.bad_param","message":"invalid character 'b' looking for beginning of value","data":null}`))
	})

	t.Run("should return 400 when failed to validate", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/workflow-instances", bytes.NewReader([]byte(`{}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(ContainSubstring(`"code":"common.bad_param"`))
	})

	t.Run("should create an instance", func(t *testing.T) {
		workflow.StartWorkflowFunc = func(contractID, templateID types.ID, sec *session.Session) (*domain.WorkflowInstance, error) {
			Expect(contractID).To(Equal(types.ID(10)))
			Expect(templateID).To(Equal(types.ID(20)))
			return &domain.WorkflowInstance{ID: types.ID(30), ContractID: contractID, TemplateID: templateID,
				TemplateVersion: 2, CurrentStage: "Review", State: domain.WorkflowStateActive}, nil
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/workflow-instances",
			bytes.NewReader([]byte(`{"contractId":"10","templateId":"20"}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body).To(MatchJSON(`{"id":"30","contractId":"10","templateId":"20","templateVersion":2,
			"currentStage":"Review","state":"active","startedAt":null,"completedAt":null}`))
	})

	t.Run("should map conflict errors", func(t *testing.T) {
		workflow.StartWorkflowFunc = func(contractID, templateID types.ID, sec *session.Session) (*domain.WorkflowInstance, error) {
			return nil, bizerror.ErrWorkflowAlreadyActive
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/workflow-instances",
			bytes.NewReader([]byte(`{"contractId":"10","templateId":"20"}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusConflict))
		Expect(body).To(MatchJSON(`{"code":"workflow.already_active","message":"active workflow already exists for this contract","data":null}`))
	})
}

func TestRecordActionRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterWorkflowHandler(router)

	t.Run("should record an action", func(t *testing.T) {
		workflow.RecordActionFunc = func(instanceID types.ID, recording *workflow.ActionRecording, sec *session.Session) (*domain.WorkflowStageAction, error) {
			Expect(instanceID).To(Equal(types.ID(30)))
			Expect(recording.StageName).To(Equal("Review"))
			Expect(recording.Action).To(Equal(stage.ActionApprove))
			return &domain.WorkflowStageAction{ID: types.ID(40), InstanceID: instanceID,
				StageName: recording.StageName, Action: recording.Action, Comment: recording.Comment}, nil
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/workflow-instances/30/actions",
			bytes.NewReader([]byte(`{"stageName":"Review","action":"approve","comment":"lgtm"}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body).To(MatchJSON(`{"id":"40","instanceId":"30","stageName":"Review","action":"approve",
			"actorId":"0","actorEmail":"","comment":"lgtm","artifacts":null,"createTime":null}`))
	})

	t.Run("should map gating failures", func(t *testing.T) {
		workflow.RecordActionFunc = func(instanceID types.ID, recording *workflow.ActionRecording, sec *session.Session) (*domain.WorkflowStageAction, error) {
			return nil, bizerror.ErrKycIncomplete
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/workflow-instances/30/actions",
			bytes.NewReader([]byte(`{"stageName":"Sign","action":"approve"}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusConflict))
		Expect(body).To(MatchJSON(`{"code":"workflow.kyc_incomplete","message":"kyc pack incomplete","data":null}`))
	})

	t.Run("should return 400 for a bad id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/workflow-instances/abc/actions",
			bytes.NewReader([]byte(`{"stageName":"Review","action":"approve"}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"common.bad_param","message":"invalid id 'abc'","data":null}`))
	})
}

func TestWorkflowHistoryRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterWorkflowHandler(router)

	t.Run("should return the action log", func(t *testing.T) {
		workflow.HistoryFunc = func(instanceID types.ID, sec *session.Session) ([]domain.WorkflowStageAction, error) {
			return []domain.WorkflowStageAction{{ID: types.ID(1), InstanceID: instanceID,
				StageName: "Review", Action: stage.ActionRework}}, nil
		}

		req := httptest.NewRequest(http.MethodGet, "/v1/workflow-instances/30/actions", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`[{"id":"1","instanceId":"30","stageName":"Review","action":"rework",
			"actorId":"0","actorEmail":"","comment":"","artifacts":null,"createTime":null}]`))
	})

	t.Run("should be able to handle error", func(t *testing.T) {
		workflow.HistoryFunc = func(instanceID types.ID, sec *session.Session) ([]domain.WorkflowStageAction, error) {
			return nil, errors.New("a mocked error")
		}

		req := httptest.NewRequest(http.MethodGet, "/v1/workflow-instances/30/actions", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusInternalServerError))
		Expect(body).To(MatchJSON(`{"code":"common.internal_server_error","message":"a mocked error","data":null}`))
	})
}

func TestCancelWorkflowRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterWorkflowHandler(router)

	t.Run("should cancel", func(t *testing.T) {
		workflow.CancelWorkflowFunc = func(instanceID types.ID, sec *session.Session) error {
			Expect(instanceID).To(Equal(types.ID(30)))
			return nil
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/workflow-instances/30/cancelling", nil)
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusNoContent))
	})

	t.Run("should map terminal state conflicts", func(t *testing.T) {
		workflow.CancelWorkflowFunc = func(instanceID types.ID, sec *session.Session) error {
			return bizerror.ErrWorkflowTerminal
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/workflow-instances/30/cancelling", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusConflict))
		Expect(body).To(MatchJSON(`{"code":"workflow.terminal","message":"workflow instance is in a terminal state","data":null}`))
	})
}
