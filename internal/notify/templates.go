package notify

import "fmt"

// DonationConfirmationBody is the thank-you email sent to a donor after a
// confirmed donation.
func DonationConfirmationBody(donorName, charityName, amount, currency, receiptNumber, transactionID string) string {
	return fmt.Sprintf(`
    <div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
      <h2 style="color: #16a34a;">Thank You for Your Donation!</h2>
      <p>Dear %s,</p>
      <p>Your donation of %s %s to %s has been successfully processed.</p>
      <div style="background-color: #f3f4f6; padding: 20px; border-radius: 8px; margin: 20px 0;">
        <p><strong>Transaction ID:</strong> %s</p>
        <p><strong>Receipt Number:</strong> %s</p>
      </div>
      <p>Thank you for making a difference!</p>
      <p>Best regards,<br>The Charity Platform Team</p>
    </div>`, donorName, amount, currency, charityName, transactionID, receiptNumber)
}

// DonationReceivedBody notifies a charity of a new confirmed donation. The
// donor name is replaced when the donation is anonymous.
func DonationReceivedBody(charityName, donorName, amount, currency, receiptNumber string, anonymous bool) string {
	from := "from " + donorName
	if anonymous {
		from = "from an anonymous donor"
	}
	return fmt.Sprintf(`
    <div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
      <h2 style="color: #16a34a;">New Donation Received!</h2>
      <p>Dear %s Team,</p>
      <p>You have received a new donation of %s %s %s.</p>
      <p><strong>Receipt Number:</strong> %s</p>
      <p>The funds will be transferred to your account as per the processing schedule.</p>
      <p>Best regards,<br>The Charity Platform Team</p>
    </div>`, charityName, amount, currency, from, receiptNumber)
}

// CharityApprovalBody congratulates an approved charity.
func CharityApprovalBody(charityName string) string {
	return fmt.Sprintf(`
    <div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
      <h2 style="color: #16a34a;">Congratulations! Your charity has been approved</h2>
      <p>Dear %s Team,</p>
      <p>We're excited to inform you that your charity registration has been approved!</p>
      <p>You can now receive donations and publish impact reports on our platform.</p>
      <p>Welcome aboard!</p>
      <p>Best regards,<br>The Charity Platform Team</p>
    </div>`, charityName)
}

// CharityRejectionBody informs a charity that its application was declined.
func CharityRejectionBody(charityName, reason string) string {
	return fmt.Sprintf(`
    <div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
      <h2 style="color: #dc2626;">Charity Registration Update</h2>
      <p>Dear %s Team,</p>
      <p>Thank you for your interest in joining our platform. Unfortunately, we cannot approve your registration at this time.</p>
      <p><strong>Reason:</strong> %s</p>
      <p>You may reapply after addressing the mentioned concerns.</p>
      <p>Best regards,<br>The Charity Platform Team</p>
    </div>`, charityName, reason)
}
