package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/yaruyo/internal/handlers/testutil"
	"github.com/charlesng35/yaruyo/internal/services"
	"github.com/charlesng35/yaruyo/pkg/errors"
)

func TestFamilyHandler_CreateJoinAndView(t *testing.T) {
	env := testutil.NewEnv(t)
	parent := env.Token("P1", "パパ")
	child := env.Token("C1", "はなこ")

	created := env.CreateFamily(parent)
	require.Equal(t, "parent", created.Role)
	require.Equal(t, "200000", created.ParentCode)
	require.Equal(t, "200001", created.ChildCode)

	env.JoinFamily(child, created.ChildCode)

	w := env.Request(http.MethodGet, "/api/family", nil, parent)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view services.FamilyView
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &view)
	require.Equal(t, created.FamilyID, view.Family.ID)
	require.Equal(t, "parent", view.MyRole)
	require.Len(t, view.Members, 2)
	require.Len(t, view.InviteCodes, 2)

	w = env.Request(http.MethodGet, "/api/family", nil, child)
	require.Equal(t, http.StatusOK, w.Code)
	var childView services.FamilyView
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &childView)
	require.Equal(t, created.FamilyID, childView.Family.ID)
	require.Equal(t, "child", childView.MyRole)
	require.Len(t, childView.Members, 2)
	require.Empty(t, childView.InviteCodes)
}

func TestFamilyHandler_CreateTwiceConflicts(t *testing.T) {
	env := testutil.NewEnv(t)
	parent := env.Token("P1", "")
	env.CreateFamily(parent)

	w := env.Request(http.MethodPost, "/api/family", nil, parent)
	require.Equal(t, http.StatusConflict, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.Equal(t, errors.CodeFailedPrecondition, resp.Error.Code)
}

func TestFamilyHandler_JoinValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Token("C1", "")

	w := env.Request(http.MethodPost, "/api/family/join", map[string]string{"code": "12ab"}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, errors.CodeInvalidArgument, resp.Error.Code)
	require.Contains(t, resp.Error.Message, "6 digit")

	w = env.Request(http.MethodPost, "/api/family/join", map[string]string{"code": "999999"}, token)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestFamilyHandler_LeaveProtectsLastParent(t *testing.T) {
	env := testutil.NewEnv(t)
	parent := env.Token("P1", "")
	child := env.Token("C1", "")
	created := env.CreateFamily(parent)
	env.JoinFamily(child, created.ChildCode)

	w := env.Request(http.MethodPost, "/api/family/leave", nil, parent)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "最後の親は家族をぬけられません", testutil.DecodeResponse(t, w).Error.Message)

	w = env.Request(http.MethodPost, "/api/family/leave", nil, child)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodPost, "/api/family/leave", nil, child)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestFamilyHandler_RenameAndClose(t *testing.T) {
	env := testutil.NewEnv(t)
	parent := env.Token("P1", "")
	child := env.Token("C1", "")
	created := env.CreateFamily(parent)
	env.JoinFamily(child, created.ChildCode)

	w := env.Request(http.MethodPatch, "/api/family/name", map[string]string{"name": "やまだ家"}, child)
	require.Equal(t, http.StatusConflict, w.Code)

	w = env.Request(http.MethodPatch, "/api/family/name", map[string]string{"name": "   "}, parent)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodPatch, "/api/family/name", map[string]string{"name": "やまだ家"}, parent)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var family struct {
		Name string `json:"name"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &family)
	require.Equal(t, "やまだ家", family.Name)

	w = env.Request(http.MethodPost, "/api/family/close", nil, child)
	require.Equal(t, http.StatusConflict, w.Code)

	w = env.Request(http.MethodPost, "/api/family/close", nil, parent)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var closed services.CloseResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &closed)
	require.Equal(t, created.FamilyID, closed.FamilyID)
	require.Equal(t, 2, closed.UsersCleared)
	require.Equal(t, 2, closed.MembershipsDeleted)

	w = env.Request(http.MethodGet, "/api/family", nil, child)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestFamilyHandler_RequiresAuthentication(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/family", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	w = env.Request(http.MethodGet, "/api/family", nil, "not-a-token")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
