package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mbeoliero/huddle/internal/entity"
	"github.com/mbeoliero/huddle/internal/mention"
	"github.com/mbeoliero/huddle/pkg/constant"
	"github.com/mbeoliero/huddle/pkg/errcode"
)

func TestUsersToRoster(t *testing.T) {
	users := []*entity.User{
		{Id: "u3", Nickname: "Bo"},
		{Id: constant.SystemUserId, Nickname: "System"},
		nil,
		{Id: "u2", Nickname: "Ana"},
		{Id: "u1", Nickname: "Bo"},
		{Id: "carla"},
	}

	assert.Equal(t, []mention.Entity{
		{Id: "u2", Name: "Ana"},
		{Id: "u1", Name: "Bo"},
		{Id: "u3", Name: "Bo"},
		{Id: "carla", Name: "carla"},
	}, usersToRoster(users))
}

func TestFilterRoster(t *testing.T) {
	roster := []mention.Entity{{Id: "u2", Name: "Ana"}, {Id: "u1", Name: "Bo"}, {Id: "u3", Name: "Cy"}}

	assert.Equal(t, []mention.Entity{{Id: "u2", Name: "Ana"}, {Id: "u3", Name: "Cy"}}, filterRoster(roster, []string{"u3", "u2", "ghost"}))
	assert.Empty(t, filterRoster(roster, nil))
}

func TestSendMessageRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  SendMessageRequest
		ok   bool
	}{
		{name: "valid", req: SendMessageRequest{ClientMsgId: "c1", Text: "hi @Ana"}, ok: true},
		{name: "missing client id", req: SendMessageRequest{Text: "hi"}},
		{name: "blank text", req: SendMessageRequest{ClientMsgId: "c1", Text: "  \n"}},
		{name: "too long", req: SendMessageRequest{ClientMsgId: "c1", Text: strings.Repeat("a", maxTextLen+1)}},
		{name: "at limit", req: SendMessageRequest{ClientMsgId: "c1", Text: strings.Repeat("a", maxTextLen)}, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, errcode.ErrInvalidParam)
		})
	}
}

func TestSendMessage_RequiresTarget(t *testing.T) {
	s := &MessageService{}
	_, err := s.SendMessage(context.Background(), "ana", &SendMessageRequest{ClientMsgId: "c1", Text: "hi"})
	assert.ErrorIs(t, err, errcode.ErrInvalidParam)
}

func TestToMessageSegments(t *testing.T) {
	bo := &mention.Entity{Id: "u1", Name: "Bo"}
	segments := []mention.Segment{
		{Text: "hey "},
		{Text: "@Bo", IsMention: true, Entity: bo},
		{Text: "@Gone", IsMention: true},
	}

	assert.Equal(t, []entity.MessageSegment{
		{Text: "hey "},
		{Text: "@Bo", IsMention: true, EntityId: "u1"},
		{Text: "@Gone", IsMention: true},
	}, toMessageSegments(segments))
}
