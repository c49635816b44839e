package scheduler

import "testing"

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	// Should add a valid cron job without error
	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("Expected no error adding job, got %v", err)
	}
}

func TestSchedulerAddJobDescriptor(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if err := s.AddJob("@every 24h", func() {}); err != nil {
		t.Errorf("Expected no error adding descriptor job, got %v", err)
	}
	if err := s.AddJob("@hourly", func() {}); err != nil {
		t.Errorf("Expected no error adding @hourly job, got %v", err)
	}
}

func TestSchedulerAddJobInvalid(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if err := s.AddJob("not a cron expr", func() {}); err == nil {
		t.Error("Expected error for invalid expression")
	}
}
