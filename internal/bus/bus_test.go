package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/saiquwi/Support-chat/internal/model"
)

func newTestHub() *Hub {
	return New(16, nil)
}

func TestPublish_DeliversToMatchingSubscriber(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	sub := hub.Subscribe(TopicNewMessage, ForRecipient(2))
	defer sub.Cancel()

	event := &NewMessageEvent{RecipientID: 2, ChatID: 100, SenderID: 1}
	hub.Publish(TopicNewMessage, event)

	select {
	case got := <-sub.Events():
		if got != event {
			t.Errorf("Expected the published event, got %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected event, got none")
	}
}

func TestPublish_PredicateFiltersOut(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	sub := hub.Subscribe(TopicNewMessage, ForRecipient(2))
	defer sub.Cancel()

	// 发给别人的消息不会出现在这个订阅里
	hub.Publish(TopicNewMessage, &NewMessageEvent{RecipientID: 3, ChatID: 100})

	select {
	case got := <-sub.Events():
		t.Fatalf("Expected no event, got %v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublish_NoCrossTopicDelivery(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	sub := hub.Subscribe(TopicChatCreated, All)
	defer sub.Cancel()

	hub.Publish(TopicNewMessage, &NewMessageEvent{RecipientID: 2})

	select {
	case got := <-sub.Events():
		t.Fatalf("Expected no event on other topic, got %v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublish_OrderPreservedPerSubscriber(t *testing.T) {
	hub := New(128, nil)
	defer hub.Close()

	sub := hub.Subscribe(TopicMessageStatusChanged, All)
	defer sub.Cancel()

	const n = 100
	for i := 0; i < n; i++ {
		hub.Publish(TopicMessageStatusChanged, &MessageStatusEvent{ChatID: int64(i)})
	}

	for i := 0; i < n; i++ {
		select {
		case got := <-sub.Events():
			e := got.(*MessageStatusEvent)
			if e.ChatID != int64(i) {
				t.Fatalf("Expected event %d in order, got %d", i, e.ChatID)
			}
		case <-time.After(time.Second):
			t.Fatalf("Expected %d events, got %d", n, i)
		}
	}
}

func TestPublish_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	hub := New(2, nil)
	defer hub.Close()

	// slow 从不消费，缓冲只有 2
	slow := hub.Subscribe(TopicNewMessage, All)
	defer slow.Cancel()
	fast := hub.Subscribe(TopicNewMessage, All)
	defer fast.Cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			hub.Publish(TopicNewMessage, &NewMessageEvent{ChatID: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	// fast 收到它缓冲能装下的事件；slow 的事件被丢弃而不是阻塞
	received := 0
	for {
		select {
		case <-fast.Events():
			received++
		default:
			if received == 0 {
				t.Error("Fast subscriber received nothing")
			}
			return
		}
	}
}

func TestCancel_DeregistersSubscriber(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	sub := hub.Subscribe(TopicNewMessage, All)
	if count := hub.SubscriberCount(TopicNewMessage); count != 1 {
		t.Fatalf("Expected 1 subscriber, got %d", count)
	}

	sub.Cancel()
	if count := hub.SubscriberCount(TopicNewMessage); count != 0 {
		t.Errorf("Expected 0 subscribers after cancel, got %d", count)
	}

	// Cancel 后通道关闭，range 可以正常退出
	if _, ok := <-sub.Events(); ok {
		t.Error("Expected closed channel after cancel")
	}

	// 再次 Cancel 是幂等的，不 panic
	sub.Cancel()
}

func TestPublish_AfterCancelDoesNotPanic(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	sub := hub.Subscribe(TopicNewMessage, All)
	sub.Cancel()

	// 已注销的订阅者不接收也不导致发布方崩溃
	hub.Publish(TopicNewMessage, &NewMessageEvent{RecipientID: 1})
}

func TestConcurrent_PublishSubscribeCancel(t *testing.T) {
	hub := New(8, nil)
	defer hub.Close()

	var wg sync.WaitGroup

	// 并发发布
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				hub.Publish(TopicNewMessage, &NewMessageEvent{RecipientID: int64(i % 10)})
			}
		}()
	}

	// 并发订阅+注销
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				sub := hub.Subscribe(TopicNewMessage, ForRecipient(id))
				// 消费一部分再注销
				select {
				case <-sub.Events():
				default:
				}
				sub.Cancel()
			}
		}(int64(g))
	}

	wg.Wait()
}

func TestClose_ShutsDownAllSubscribers(t *testing.T) {
	hub := newTestHub()

	sub1 := hub.Subscribe(TopicNewMessage, All)
	sub2 := hub.Subscribe(TopicChatCreated, All)

	hub.Close()

	if _, ok := <-sub1.Events(); ok {
		t.Error("Expected sub1 channel closed after hub close")
	}
	if _, ok := <-sub2.Events(); ok {
		t.Error("Expected sub2 channel closed after hub close")
	}

	// 关闭后的发布与订阅是安全的空操作
	hub.Publish(TopicNewMessage, &NewMessageEvent{})
	sub3 := hub.Subscribe(TopicNewMessage, All)
	if _, ok := <-sub3.Events(); ok {
		t.Error("Expected closed channel from subscribe after close")
	}

	hub.Close() // 幂等
}

func TestForChatMember_Predicate(t *testing.T) {
	memberOf := func(chatID int64) bool { return chatID == 100 }
	pred := ForChatMember(7, memberOf)

	if !pred(&MessageStatusEvent{ChatID: 100, UserID: 7}) {
		t.Error("Expected match for member chat + right user")
	}
	if pred(&MessageStatusEvent{ChatID: 200, UserID: 7}) {
		t.Error("Expected no match for non-member chat")
	}
	if pred(&MessageStatusEvent{ChatID: 100, UserID: 8}) {
		t.Error("Expected no match for other user")
	}
	if pred(&NewMessageEvent{ChatID: 100}) {
		t.Error("Expected no match for wrong payload type")
	}
}

func TestForUser_Predicate(t *testing.T) {
	pred := ForUser(5)

	chat := &model.ChatSummary{}
	if !pred(&ChatEvent{Chat: chat, UserID: 5}) {
		t.Error("Expected match for addressed user")
	}
	if pred(&ChatEvent{Chat: chat, UserID: 6}) {
		t.Error("Expected no match for other user")
	}
}
